package domain

import "time"

// Reporter is a registered end user who files tickets.
type Reporter struct {
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
