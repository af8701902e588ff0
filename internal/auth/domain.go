package auth

import "time"

// User represents an account able to authenticate.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	EnterpriseID string
	IsActive     bool
	CreatedAt    time.Time
}
