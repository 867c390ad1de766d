package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCategoryProgress(t *testing.T) {
	kanji := Category{Name: "kanji", TotalCharacters: 80}
	hira := Category{Name: "hiragana", TotalCharacters: 46}

	tests := []struct {
		name      string
		cat       Category
		completed int
		wantPct   float64
		wantDone  bool
		wantCount int
	}{
		{"none", kanji, 0, 0, false, 0},
		{"rounds to two decimals", hira, 1, 2.17, false, 1},
		{"two thirds", hira, 31, 67.39, false, 31},
		{"almost", hira, 45, 97.83, false, 45},
		{"complete", kanji, 80, 100, true, 80},
		{"clamped", kanji, 95, 100, true, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCategoryProgress(tt.cat, tt.completed)
			assert.Equal(t, tt.wantPct, got.Percentage)
			assert.Equal(t, tt.wantDone, got.IsComplete)
			assert.Equal(t, tt.wantCount, got.CompletedCharacters)
			assert.Equal(t, tt.cat.TotalCharacters, got.TotalCharacters)
		})
	}
}

func TestLookupCategory(t *testing.T) {
	c, ok := LookupCategory("katakana")
	assert.True(t, ok)
	assert.Equal(t, 46, c.TotalCharacters)

	_, ok = LookupCategory("hangul")
	assert.False(t, ok)
}

func TestExplainCoversEveryLabel(t *testing.T) {
	for _, l := range Labels {
		assert.NotEmpty(t, Explain(l), l)
	}
	assert.Empty(t, Explain("?"))
}
