package model

import "time"

// Admin is an account allowed to perform administrative writes
type Admin struct {
	Username     string // immutable
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
