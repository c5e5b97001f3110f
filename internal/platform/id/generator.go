package id

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// Generator creates opaque entry ids for trackers.
type Generator interface {
	NewID() (string, error)
}

type RandomGenerator struct{}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

func (g *RandomGenerator) NewID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random bytes")
	}
	return hex.EncodeToString(buf), nil
}

var transliterations = map[rune]string{
	'ä': "a", 'ö': "o", 'ü': "u", 'ß': "ss",
	'é': "e", 'è': "e", 'à': "a", 'ç': "c",
}

// Slugify lowercases name and joins its alphanumeric runs with underscores,
// e.g. "FT 1844 Freiburg 4" becomes "ft_1844_freiburg_4".
func Slugify(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if repl, ok := transliterations[r]; ok {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteString(repl)
			continue
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// UniqueID combines a display name with an entry id.
func UniqueID(name, entryID string) string {
	slug := Slugify(name)
	if slug == "" {
		return entryID
	}
	return slug + "_" + entryID
}
