// Package regid generates human-readable registration numbers of the form
// NNNNN-NNNNNN from a cryptographically strong source.
package regid

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
)

const (
	length    = 12
	hyphenPos = 5
)

var pattern = regexp.MustCompile(`^\d{5}-\d{6}$`)

// Generator draws digits from an entropy source.
type Generator struct {
	src io.Reader
}

// New returns a Generator reading from src; nil means crypto/rand.
func New(src io.Reader) *Generator {
	if src == nil {
		src = rand.Reader
	}
	return &Generator{src: src}
}

// Generate returns a fresh id. Digits are unbiased: bytes >= 250 are
// discarded so each digit is uniform over 0-9.
func (g *Generator) Generate() (string, error) {
	out := make([]byte, length)
	out[hyphenPos] = '-'

	buf := make([]byte, 16)
	i := 0
	for i < length {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if i == hyphenPos {
				i++
			}
			if i >= length {
				break
			}
			if b >= 250 {
				continue
			}
			out[i] = '0' + b%10
			i++
		}
	}
	return string(out), nil
}

var defaultGenerator = New(nil)

// Generate returns a fresh id from crypto/rand.
func Generate() (string, error) {
	return defaultGenerator.Generate()
}

// Valid reports whether id has the registration number format.
func Valid(id string) bool {
	return pattern.MatchString(id)
}
