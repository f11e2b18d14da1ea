package domain

import "time"

// RefreshToken is one entry in the refresh token ledger. The raw token only
// lives in RawToken on a freshly issued record; stores keep TokenHash.
type RefreshToken struct {
	ID        string
	TokenHash string
	UserID    string
	IsRevoked bool
	ExpiresAt time.Time
	CreatedAt time.Time
	RawToken  string
}

// IsActive is false for revoked records and for records whose expiry is at
// or before now.
func (t RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}

func (t RefreshToken) Matches(hash, userID string) bool {
	return t.TokenHash == hash && t.UserID == userID
}

// Persisted strips the raw token before the record is stored.
func (t RefreshToken) Persisted() RefreshToken {
	t.RawToken = ""
	return t
}
