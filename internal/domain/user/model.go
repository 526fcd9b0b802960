package user

import (
	"errors"
	"net/mail"
	"strings"
)

// Preference keys as stored in the wiki's user_properties table.
const (
	PrefNotifyOnWatchedChange = "enotifwatchlistpages"
	PrefRevealAddress         = "enotifrevealaddr"
	PrefTimeCorrection        = "timecorrection"
)

// Domain errors
var (
	ErrNotFound  = errors.New("user not found")
	ErrEmptyName = errors.New("user name cannot be empty")
)

// User is a wiki account as seen by the notification pipeline.
type User struct {
	ID                    int64 // 0 for anonymous editors
	Name                  string
	RealName              string
	Email                 string
	EmailConfirmed        bool
	NotifyOnWatchedChange bool
	RevealAddress         bool   // opted in to exposing their address to recipients
	TimeCorrection        string // raw timecorrection preference, see ParseTimeCorrection
}

// Anonymous returns the identity of an unregistered editor, named by IP address.
// PRE: ip is the editor's address
// POST: Returns a User with ID 0
func Anonymous(ip string) User {
	return User{Name: ip}
}

// Validate checks that the User has valid data.
// PRE: User struct is populated
// POST: Returns nil if valid, error otherwise
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// IsAnonymous returns true for unregistered editors.
// INVARIANT: User fields are not mutated
func (u User) IsAnonymous() bool {
	return u.ID == 0
}

// DisplayName returns the real name when preferred and set, otherwise the account name.
// INVARIANT: User fields are not mutated
func (u User) DisplayName(preferRealName bool) string {
	if preferRealName && strings.TrimSpace(u.RealName) != "" {
		return u.RealName
	}
	return u.Name
}

// CanReceiveWatchNotification reports whether watch notifications may be mailed to u.
// INVARIANT: User fields are not mutated
func (u User) CanReceiveWatchNotification() bool {
	return u.NotifyOnWatchedChange && u.EmailConfirmed && u.Email != ""
}

// HasVerifiedEmail reports whether u has a confirmed, non-empty address.
func (u User) HasVerifiedEmail() bool {
	return u.Email != "" && u.EmailConfirmed
}

// MailAddress formats u as an RFC 5322 address, using the real name when present.
// PRE: u.Email is non-empty
// POST: Returns e.g. `"Ada Lovelace" <ada@example.org>`
func (u User) MailAddress() string {
	return (&mail.Address{Name: u.DisplayName(true), Address: u.Email}).String()
}
