package models

import "time"

// User is a registered account. Guests never get a row here; their owner id
// is minted into the access token instead.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
