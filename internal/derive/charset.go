package derive

// Character classes. The symbol set matches the original installed base;
// changing any of these changes every derived password.
const (
	Lower  = "abcdefghijklmnopqrstuvwxyz"
	Upper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits = "0123456789"
	Symbol = "!@#$%^&*()-_=+[]{};:,.?"

	// Full is every class combined.
	Full = Lower + Upper + Digits + Symbol

	// Base64URL is the URL-safe base64 alphabet.
	Base64URL = Lower + Upper + Digits + "-_"

	base64URLSpecial = "-_"
)

// requiredClasses are assigned, in this order, to the pre-selected
// positions in alphanumsym mode.
var requiredClasses = [...]string{Lower, Upper, Digits, Symbol}
