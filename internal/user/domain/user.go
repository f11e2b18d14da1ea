package domain

import "time"

type ID string

// User is the full store record. PasswordHash never leaves the auth core;
// callers outside it receive dto.User.
type User struct {
	ID           ID
	Email        string
	Username     string
	PasswordHash string
	FirstName    *string
	LastName     *string
	DisplayName  *string
	Bio          *string
	ProfileImage *string
	CoverImage   *string
	Website      *string
	Location     *string
	BirthDate    *time.Time
	IsVerified   bool
	IsPrivate    bool
	IsActive     bool
	LastActiveAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
