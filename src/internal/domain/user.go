package domain

import "time"

type User struct {
	ID        string // OIDC Subject ID
	Email     string
	CreatedAt time.Time
	LastSeen  time.Time
}

// Anonymous is the user for requests that carry no verified identity.
var Anonymous = &User{}

// IsAuthenticated reports whether u is a known, signed-in user.
// Anonymous users never see anything as unread and cannot mark anything read.
func (u *User) IsAuthenticated() bool {
	return u != nil && u.ID != ""
}
