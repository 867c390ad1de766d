package domain

import "math"

// Category is a group of characters a learner practises.
type Category struct {
	Name            string
	TotalCharacters int
}

// Categories is the fixed quota table used for progress tracking.
var Categories = []Category{
	{Name: "hiragana", TotalCharacters: 46},
	{Name: "katakana", TotalCharacters: 46},
	{Name: "kanji", TotalCharacters: 80},
}

// LookupCategory returns the quota entry for name.
func LookupCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryProgress is the completion state of one category.
type CategoryProgress struct {
	Category            string  `json:"category"`
	TotalCharacters     int     `json:"totalCharacters"`
	CompletedCharacters int     `json:"completedCharacters"`
	Percentage          float64 `json:"percentage"`
	IsComplete          bool    `json:"isComplete"`
}

// NewCategoryProgress computes completion for completed characters out of c.
// Completed is clamped to the quota.
func NewCategoryProgress(c Category, completed int) CategoryProgress {
	if completed > c.TotalCharacters {
		completed = c.TotalCharacters
	}
	if completed < 0 {
		completed = 0
	}
	var pct float64
	if c.TotalCharacters > 0 {
		pct = math.Round(float64(completed)/float64(c.TotalCharacters)*100*100) / 100
	}
	return CategoryProgress{
		Category:            c.Name,
		TotalCharacters:     c.TotalCharacters,
		CompletedCharacters: completed,
		Percentage:          pct,
		IsComplete:          pct == 100,
	}
}
