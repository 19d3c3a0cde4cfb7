package code

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// codeAlphabet excludes lookalike characters (0/O, 1/I) so codes survive
// being read aloud or retyped from a chat screen.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeGroups    = 4
	codeGroupSize = 3
)

// generateValue mints a random code value in XXX-XXX-XXX-XXX form.
func generateValue() (string, error) {
	raw := make([]byte, codeGroups*codeGroupSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	var b strings.Builder
	for i, c := range raw {
		if i > 0 && i%codeGroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
	}
	return b.String(), nil
}

// NormalizeValue canonicalizes user input: uppercase, surrounding whitespace
// stripped, spaces treated as dashes.
func NormalizeValue(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	return strings.ReplaceAll(value, " ", "-")
}

// codePattern loosely matches a candidate code inside free-form chat text.
// Strict validation happens against the store, not here.
var codePattern = regexp.MustCompile(`[A-Z2-9]{3}[- ][A-Z2-9]{3}[- ][A-Z2-9]{3}[- ][A-Z2-9]{3}`)

// ExtractValue finds the first code-shaped token in free-form text and
// returns it normalized. ok is false when the text contains none.
func ExtractValue(text string) (value string, ok bool) {
	match := codePattern.FindString(strings.ToUpper(text))
	if match == "" {
		return "", false
	}
	return NormalizeValue(match), true
}
