package code

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateValue(t *testing.T) {
	t.Run("has the grouped shape", func(t *testing.T) {
		value, err := generateValue()
		require.NoError(t, err)

		groups := strings.Split(value, "-")
		require.Len(t, groups, 4)
		for _, g := range groups {
			assert.Len(t, g, 3)
		}
	})

	t.Run("never contains lookalike characters", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			value, err := generateValue()
			require.NoError(t, err)
			assert.NotContainsf(t, value, "0", "value %s", value)
			assert.NotContainsf(t, value, "O", "value %s", value)
			assert.NotContainsf(t, value, "1", "value %s", value)
			assert.NotContainsf(t, value, "I", "value %s", value)
		}
	})
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "ABC-DEF-GHJ-KLM", NormalizeValue("  abc-def-ghj-klm "))
	assert.Equal(t, "ABC-DEF-GHJ-KLM", NormalizeValue("ABC DEF GHJ KLM"))
}

func TestExtractValue(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"bare code", "ABC-DEF-GHJ-KLM", "ABC-DEF-GHJ-KLM", true},
		{"code inside a sentence", "my code is abc-def-ghj-klm thanks", "ABC-DEF-GHJ-KLM", true},
		{"space separated", "ABC DEF GHJ KLM", "ABC-DEF-GHJ-KLM", true},
		{"no code", "hello, can I ask a question?", "", false},
		{"too short", "ABC-DEF", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractValue(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
