package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitText("hello", 10, ""))
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	s := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitText(s, 12, "")
	assert.Equal(t, []string{strings.Repeat("a", 8), strings.Repeat("b", 8)}, got)
}

func TestSplitTextCountsRunes(t *testing.T) {
	s := strings.Repeat("я", 25)
	got := splitText(s, 10, "")
	require.Len(t, got, 3)
	for _, c := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, s, strings.Join(got, ""))
}

func TestSplitTextKeepsHTMLTagsWhole(t *testing.T) {
	s := "0123456<b>bold</b>"
	got := splitText(s, 9, "HTML")
	require.NotEmpty(t, got)
	assert.Equal(t, "0123456", got[0])
	for _, c := range got {
		assert.Equal(t, -1, danglingTag([]rune(c)), c)
	}
}
