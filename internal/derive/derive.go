// Package derive implements the deterministic password derivation engine:
// a pure function of the master secret, the site context and the install
// seeds. It performs no I/O.
package derive

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 work factor. It is the only defense against
	// offline brute force of the master secret.
	Iterations = 200_000

	// IKMSize is the size in bytes of the stretched key material.
	IKMSize = 32

	// StreamSize is the number of expanded bytes available to the selector.
	StreamSize = 128

	MinLength     = 12
	MaxLength     = 64
	DefaultLength = 20
)

var (
	ErrInvalidLength  = errors.New("length out of range")
	ErrInvalidCounter = errors.New("counter must be >= 1")
	ErrMissingSeeds   = errors.New("install seeds missing")
)

// Request holds every input of a derivation. Nothing here is persisted.
type Request struct {
	Master      string
	Domain      string
	User        string
	Counter     int
	Length      int
	Mode        Mode
	SaltLabel   string
	InstallSeed string
	UserSeed    string
}

// Validate checks the request shape. Length is ignored for uuid4.
func (r Request) Validate() error {
	if r.Counter < 1 {
		return ErrInvalidCounter
	}
	if r.Mode != ModeUUID4 && (r.Length < MinLength || r.Length > MaxLength) {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidLength, r.Length, MinLength, MaxLength)
	}
	if r.InstallSeed == "" || r.UserSeed == "" {
		return ErrMissingSeeds
	}
	return nil
}

// Derive returns the password for req. Identical requests always yield
// identical output.
func Derive(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	stream, err := expand(req)
	if err != nil {
		return "", err
	}
	return assemble(stream, req.Mode, req.Length)
}

// expand runs key stretching followed by per-install expansion.
func expand(req Request) (*Stream, error) {
	salt := []byte(req.SaltLabel + "|" + req.Domain)
	ikm := pbkdf2.Key([]byte(req.Master), salt, Iterations, IKMSize, sha256.New)

	info := req.Domain + "|" + req.User + "|" + strconv.Itoa(req.Counter) + "|" + req.InstallSeed + "|" + req.UserSeed
	buf := make([]byte, StreamSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, []byte(info)), buf); err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	return NewStream(buf), nil
}

// assemble builds the output for mode from the stream. It is separated
// from expand so the selection logic can be exercised on fixed streams.
func assemble(s *Stream, mode Mode, length int) (string, error) {
	if mode == ModeUUID4 {
		return uuidFromStream(s)
	}

	out := make([]byte, length)
	switch mode {
	case ModeAlphaNumSym:
		positions := make([]int, 0, len(requiredClasses))
		used := make(map[int]bool, len(requiredClasses))
		for len(positions) < len(requiredClasses) && len(positions) < length {
			p, err := s.Pick(length)
			if err != nil {
				return "", err
			}
			if used[p] {
				continue
			}
			used[p] = true
			positions = append(positions, p)
		}
		for k, p := range positions {
			c, err := pickFrom(s, requiredClasses[k])
			if err != nil {
				return "", err
			}
			out[p] = c
		}
	case ModeBase64URL:
		p, err := s.Pick(length)
		if err != nil {
			return "", err
		}
		c, err := pickFrom(s, base64URLSpecial)
		if err != nil {
			return "", err
		}
		out[p] = c
	}

	charset := Full
	if mode == ModeBase64URL {
		charset = Base64URL
	}
	for i := range out {
		if out[i] != 0 {
			continue
		}
		c, err := pickFrom(s, charset)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	return string(out), nil
}

func pickFrom(s *Stream, charset string) (byte, error) {
	i, err := s.Pick(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[i], nil
}

func uuidFromStream(s *Stream) (string, error) {
	b, err := s.Next(16)
	if err != nil {
		return "", err
	}
	var u uuid.UUID
	copy(u[:], b)
	u[6] = (u[6] & 0x0f) | 0x40
	u[8] = (u[8] & 0x3f) | 0x80
	return u.String(), nil
}

// ClampLength maps a requested length into [MinLength, MaxLength]. Zero
// selects DefaultLength.
func ClampLength(n int) int {
	switch {
	case n == 0:
		return DefaultLength
	case n < MinLength:
		return MinLength
	case n > MaxLength:
		return MaxLength
	}
	return n
}
