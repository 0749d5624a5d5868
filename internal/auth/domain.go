package auth

import "time"

// User represents an account able to authenticate against the API.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token is an issued API credential. Only its SHA-256 hash is stored.
type Token struct {
	UserID    int64
	ExpiresAt time.Time
}
