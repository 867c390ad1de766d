package domain

import "time"

// MaxImageBytes is the largest image accepted for classification.
const MaxImageBytes = 1 << 20

// Prediction is a stored classification result.
//
// Image predictions leave Category and Character empty. Pre-labeled predictions
// are unique per (UserID, Category, Character).
type Prediction struct {
	ID              string    `json:"id" bson:"_id"`
	UserID          string    `json:"userId,omitempty" bson:"userId,omitempty"`
	Category        string    `json:"category,omitempty" bson:"category,omitempty"`
	Character       string    `json:"character,omitempty" bson:"character,omitempty"`
	ConfidenceScore float64   `json:"confidenceScore" bson:"confidenceScore"`
	Result          string    `json:"result" bson:"result"`
	Suggestion      string    `json:"suggestion" bson:"suggestion"`
	ImageKey        string    `json:"imageKey,omitempty" bson:"imageKey,omitempty"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Labeled reports whether the prediction was submitted with a category and character.
func (p *Prediction) Labeled() bool {
	return p.Category != "" && p.Character != ""
}

// UpsertOutcome tells which branch a pre-labeled submission took.
type UpsertOutcome string

const (
	OutcomeCreated   UpsertOutcome = "created"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)
