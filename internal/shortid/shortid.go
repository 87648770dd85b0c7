package shortid

import (
	"crypto/rand"
	"errors"
	"strings"
)

// Alphabet is URL-safe: every symbol is unreserved in RFC 3986.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_-"

// Length of generated identifiers.
const Length = 8

const (
	minAliasLen = 3
	maxAliasLen = 64
)

// reserved aliases would be shadowed by the /analytics/topic and /analytics/overall routes.
var reserved = map[string]bool{"topic": true, "overall": true}

// Generate returns a random identifier of n symbols.
func Generate(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	// len(Alphabet) is 64, so masking keeps the distribution uniform.
	for i := range b {
		b[i] = Alphabet[b[i]&63]
	}
	return string(b)
}

// Random generates identifiers of a fixed length.
type Random struct {
	n int
}

func NewRandom() Random {
	return Random{n: Length}
}

func (r Random) Generate() string {
	return Generate(r.n)
}

// ValidateAlias checks a caller-supplied alias.
func ValidateAlias(alias string) error {
	if len(alias) < minAliasLen || len(alias) > maxAliasLen {
		return errors.New("must be between 3 and 64 characters")
	}
	for i := 0; i < len(alias); i++ {
		if !strings.ContainsRune(Alphabet, rune(alias[i])) {
			return errors.New("may only contain letters, digits, '_' and '-'")
		}
	}
	if reserved[strings.ToLower(alias)] {
		return errors.New("is reserved")
	}
	return nil
}
