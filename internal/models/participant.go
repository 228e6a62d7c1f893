package models

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// Participant is a person taking part in a split.
type Participant struct {
	// ID is unique and generated client-side on creation.
	ID string `json:"id"`

	// Name is the display name. It is not guaranteed globally unique but
	// serves as a secondary matching key on rejoin.
	Name string `json:"name"`

	// Color is a display attribute, irrelevant to correctness.
	Color string `json:"color"`
}

// palette holds the display colors assigned to new participants.
var palette = []string{
	"#f94144", "#f3722c", "#f8961e", "#f9c74f",
	"#90be6d", "#43aa8b", "#4d908e", "#577590",
}

// RandomColor picks a display color for a new participant.
func RandomColor() string {
	return palette[rand.IntN(len(palette))]
}

// NewParticipant creates a participant with a fresh ID and a random
// display color.
func NewParticipant(name string) Participant {
	return Participant{
		ID:    uuid.New().String(),
		Name:  name,
		Color: RandomColor(),
	}
}
