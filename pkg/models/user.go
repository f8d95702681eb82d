package models

import "strings"

// User is a chat participant as supplied by the identity and user-search
// collaborators. Immutable once fetched.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName returns "First Last" when both parts are present, otherwise
// the username.
func (u User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

// Matches reports whether the user matches a case-insensitive substring
// query against username, first or last name. An empty query matches.
func (u User) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(u.Username), q) ||
		strings.Contains(strings.ToLower(u.FirstName), q) ||
		strings.Contains(strings.ToLower(u.LastName), q)
}
