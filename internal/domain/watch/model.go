package watch

import (
	"errors"

	"categorywatch/internal/domain/wikititle"
)

// Domain errors
var (
	ErrInvalidUser  = errors.New("watch entry requires a registered user")
	ErrInvalidTitle = errors.New("watch entry requires a title")
)

// Entry records that a user watches a title. The watchlist store owns its lifecycle.
type Entry struct {
	UserID    int64
	Namespace int
	Title     string // DB key form, e.g. "Birds_of_prey"
}

// ForCategory builds the entry for userID watching the given category title.
// PRE: t is a category title
// POST: Returns an Entry keyed by the title's DB key
func ForCategory(userID int64, t wikititle.Title) Entry {
	return Entry{UserID: userID, Namespace: t.Namespace, Title: t.DBKey()}
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Entry) Validate() error {
	if e.UserID <= 0 {
		return ErrInvalidUser
	}
	if e.Title == "" {
		return ErrInvalidTitle
	}
	return nil
}
