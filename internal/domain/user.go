package domain

import (
	"regexp"
	"time"
)

var emailRx = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether the address is syntactically valid.
func ValidEmail(email string) bool {
	return emailRx.MatchString(email)
}

// User is the domain model for every account: requesters, support
// agents and administrators, differentiated only by Role.
type User struct {
	ID           string
	Email        string
	Firstname    string
	Lastname     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
