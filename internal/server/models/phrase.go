package models

import "time"

// Phrase is the second half of the (user, phrase) attachment slot.
// Like User, it carries no behavior of its own.
type Phrase struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
