package model

import "time"

// User is the slice of the health app's user profile this service needs
// for notification addressing and checkout prefill. User CRUD is owned by
// the app; this service only reads.
type User struct {
	ID        string // UUID
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// DisplayName is the salutation used in notification templates.
func (u *User) DisplayName() string {
	if u == nil || u.FirstName == "" {
		return "User"
	}
	return u.FirstName
}
