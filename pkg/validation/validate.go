// Package validation checks user-supplied input before it reaches the
// engine. The engine trusts its callers; the gateway and the session
// controller run these checks at the boundary.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"chatcore/pkg/models"
)

var (
	// ErrContentTooLong rejects message content above MaxContentLen.
	ErrContentTooLong = errors.New("message content too long")
	// ErrInvalidUser rejects a participant record the directory cannot key.
	ErrInvalidUser = errors.New("invalid participant")
)

// MaxContentLen bounds message content in runes. Matches the upstream
// server limit so an accepted send cannot be rejected on the wire.
const MaxContentLen = 4096

const maxNameLen = 128

// Content checks message content length. It does not reject blank
// content; emptiness is the session controller's call.
func Content(s string) error {
	if n := utf8.RuneCountInString(s); n > MaxContentLen {
		return fmt.Errorf("content is %d runes, limit %d: %w", n, MaxContentLen, ErrContentTooLong)
	}
	return nil
}

// User checks a participant record supplied by the presentation layer.
func User(u models.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("participant id is empty: %w", ErrInvalidUser)
	}
	for field, v := range map[string]string{
		"id":         u.ID,
		"username":   u.Username,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	} {
		if utf8.RuneCountInString(v) > maxNameLen {
			return fmt.Errorf("%s exceeds %d runes: %w", field, maxNameLen, ErrInvalidUser)
		}
	}
	return nil
}
