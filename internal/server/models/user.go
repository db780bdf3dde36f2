// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an identity anchor that an upload or download must reference.
// Users are provisioned out of band; the audio pipeline only checks
// existence.
type User struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
