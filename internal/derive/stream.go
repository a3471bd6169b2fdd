package derive

import "errors"

// ErrEntropyExhausted is returned when the pseudorandom stream runs out
// before the password is complete. The request must be re-derived; a
// partial result is never returned.
var ErrEntropyExhausted = errors.New("not enough entropy bytes")

// Stream is a forward-only cursor over derived bytes. A byte is consumed
// exactly once, whether accepted or rejected.
type Stream struct {
	buf []byte
	pos int
}

// NewStream wraps buf. The stream does not copy buf.
func NewStream(buf []byte) *Stream {
	return &Stream{buf: buf}
}

// Remaining returns the number of unconsumed bytes.
func (s *Stream) Remaining() int {
	return len(s.buf) - s.pos
}

// Next consumes exactly n bytes.
func (s *Stream) Next(n int) ([]byte, error) {
	if n < 0 || s.Remaining() < n {
		return nil, ErrEntropyExhausted
	}
	out := s.buf[s.pos : s.pos+n]
	s.pos += n
	return out, nil
}

// Pick returns a uniform index in [0, n) by rejection sampling: bytes at
// or above the largest multiple of n that fits in 256 are discarded so no
// outcome is favored by the modulo.
func (s *Stream) Pick(n int) (int, error) {
	if n <= 0 || n > 256 {
		return 0, errors.New("pick: n must be in [1, 256]")
	}
	limit := (256 / n) * n
	for s.pos < len(s.buf) {
		b := int(s.buf[s.pos])
		s.pos++
		if b < limit {
			return b % n, nil
		}
	}
	return 0, ErrEntropyExhausted
}
