package dto

import "time"

// User is the sanitized view of a user record. It has no password hash
// field, so it cannot leak one.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	FirstName    *string    `json:"firstName"`
	LastName     *string    `json:"lastName"`
	DisplayName  *string    `json:"displayName"`
	Bio          *string    `json:"bio"`
	ProfileImage *string    `json:"profileImage"`
	CoverImage   *string    `json:"coverImage"`
	Website      *string    `json:"website"`
	Location     *string    `json:"location"`
	BirthDate    *time.Time `json:"birthDate"`
	IsVerified   bool       `json:"isVerified"`
	IsPrivate    bool       `json:"isPrivate"`
	IsActive     bool       `json:"isActive"`
	LastActiveAt *time.Time `json:"lastActiveAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
