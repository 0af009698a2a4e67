// Package codec holds the pure hex/base64 predicates and codecs shared by
// every other Bubble Protocol package: address normalization, the
// base64/base64url detection policy, and small byte-level assertions.
package codec

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsHexDigits reports whether s consists only of lowercase or uppercase
// hex digits.
func IsHexDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeHexAddress validates that s is a 20-byte address (optionally
// 0x-prefixed) and returns it canonicalized to lowercase with a 0x prefix.
// Unlike go-ethereum's common.HexToAddress (which silently truncates or
// zero-pads malformed input), this returns an explicit error — the
// Guardian must reject malformed addresses, not coerce them.
func NormalizeHexAddress(s string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(trimmed) != 40 || !IsHexDigits(trimmed) {
		return "", fmt.Errorf("invalid address: %q", s)
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// NormalizeHash32 validates that s is exactly 32 bytes of hex (optionally
// 0x-prefixed) and returns it canonicalized to lowercase with a 0x prefix.
func NormalizeHash32(s string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(trimmed) != 64 || !IsHexDigits(trimmed) {
		return "", fmt.Errorf("invalid 32-byte hex value: %q", s)
	}
	return "0x" + strings.ToLower(trimmed), nil
}

// base64Alphabet classifies the encoding a candidate string appears to use,
// following an alphabet-sniffing policy: presence of any of
// '+', '/', '=' marks it as standard base64; presence of '-' or '_' marks
// it as base64url; both present is a hard rejection.
type base64Alphabet int

const (
	alphabetUnknown base64Alphabet = iota
	alphabetStandard
	alphabetURL
	alphabetMixed
)

func classify(s string) base64Alphabet {
	hasStd := strings.ContainsAny(s, "+/=")
	hasURL := strings.ContainsAny(s, "-_")
	switch {
	case hasStd && hasURL:
		return alphabetMixed
	case hasStd:
		return alphabetStandard
	case hasURL:
		return alphabetURL
	default:
		return alphabetUnknown
	}
}

// DecodeFlexibleBase64 decodes s as either standard base64 or base64url,
// auto-detecting the alphabet. Strings mixing both
// alphabets are rejected. Strings using neither special character are
// tried as unpadded base64url first (the emitted form), falling back to
// standard base64.
func DecodeFlexibleBase64(s string) ([]byte, error) {
	switch classify(s) {
	case alphabetMixed:
		return nil, fmt.Errorf("mixed base64/base64url alphabet")
	case alphabetStandard:
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return b, nil
		}
		return base64.RawStdEncoding.DecodeString(s)
	case alphabetURL:
		if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
			return b, nil
		}
		return base64.URLEncoding.DecodeString(s)
	default:
		if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
			return b, nil
		}
		return base64.RawStdEncoding.DecodeString(s)
	}
}

// EncodeBase64URL encodes data as unpadded base64url, the only form the
// Guardian ever emits.
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
