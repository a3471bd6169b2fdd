package derive

import "strings"

// Mode selects the output format.
type Mode string

const (
	ModeDefault     Mode = "default"
	ModeAlphaNumSym Mode = "alphanumsym"
	ModeBase64URL   Mode = "base64url"
	ModeUUID4       Mode = "uuid4"
)

// Modes lists the recognized modes.
var Modes = []Mode{ModeDefault, ModeAlphaNumSym, ModeBase64URL, ModeUUID4}

// ParseMode maps a mode name to a Mode. "alpnumsym" is accepted as an
// alias; anything unrecognized is the default mode.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alphanumsym", "alpnumsym":
		return ModeAlphaNumSym
	case "base64url":
		return ModeBase64URL
	case "uuid4", "uuid":
		return ModeUUID4
	default:
		return ModeDefault
	}
}

func (m Mode) String() string {
	return string(m)
}
