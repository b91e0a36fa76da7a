package sigv4

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// uriUnescaped marks the bytes a generic URL encoder leaves bare: the RFC
// 3986 unreserved set plus the sub-delimiters ! ' ( ) *. The stricter
// encodeRFC3986 pass removes those five afterwards.
var uriUnescaped [256]bool

func init() {
	for c := 0; c < len(uriUnescaped); c++ {
		uriUnescaped[c] = c >= 'A' && c <= 'Z' ||
			c >= 'a' && c <= 'z' ||
			c >= '0' && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == '~' ||
			c == '!' || c == '\'' || c == '(' || c == ')' || c == '*'
	}
}

const upperhex = "0123456789ABCDEF"

// uriEncode percent-encodes every byte of s except the uriUnescaped set.
func uriEncode(s string) string {
	var n int
	for i := 0; i < len(s); i++ {
		if !uriUnescaped[s[i]] {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if uriUnescaped[c] {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		}
	}
	return b.String()
}

// encodeRFC3986 escapes the bytes uriEncode leaves bare but AWS requires
// escaped: the sub-delimiters ! ' ( ) * and any control byte. It is applied
// to already-encoded text, so all other bytes pass through untouched.
func encodeRFC3986(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '!' || c == '\'' || c == '(' || c == ')' || c == '*' || c < 0x20 || c == 0x7f:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DecodeError reports a malformed percent-encoded string. Signing never
// fails on one: the canonicalizer falls back to the raw, undecoded text.
type DecodeError struct {
	Input string
	// Pos is the byte offset of the offending escape, or -1 when the
	// escapes were well-formed but the decoded text is not valid UTF-8.
	Pos int
}

func (e *DecodeError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("sigv4: percent-decoding of %q yields invalid UTF-8", e.Input)
	}
	return fmt.Sprintf("sigv4: invalid percent-encoding at byte %d of %q", e.Pos, e.Input)
}

// PercentDecode reverses percent-encoding and validates that the result is
// well-formed UTF-8, returning a *DecodeError otherwise. Unlike query
// unescaping it leaves '+' alone.
func PercentDecode(s string) (string, error) {
	if !strings.Contains(s, "%") {
		if !utf8.ValidString(s) {
			return "", &DecodeError{Input: s, Pos: -1}
		}
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+2 >= len(s) {
			return "", &DecodeError{Input: s, Pos: i}
		}
		hi := unhex(s[i+1])
		lo := unhex(s[i+2])
		if hi < 0 || lo < 0 {
			return "", &DecodeError{Input: s, Pos: i}
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 3
	}
	out := b.String()
	if !utf8.ValidString(out) {
		return "", &DecodeError{Input: s, Pos: -1}
	}
	return out, nil
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}
