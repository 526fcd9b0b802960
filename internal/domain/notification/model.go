package notification

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"categorywatch/internal/domain/category"
	"categorywatch/internal/domain/user"
	"categorywatch/internal/domain/wikititle"
)

// Error kinds. Failures wrap exactly one of these.
var (
	ErrLookupFailure   = errors.New("lookup failed")
	ErrTemplateMissing = errors.New("message template missing")
	ErrDeliveryFailure = errors.New("mail delivery failed")
)

// Stage names where in the pipeline a failure happened.
type Stage string

const (
	StageLoadingCategories Stage = "loading_categories"
	StageResolvingEditor   Stage = "resolving_editor"
	StageResolvingWatchers Stage = "resolving_watchers"
	StageComposing         Stage = "composing"
	StageDispatching       Stage = "dispatching"
)

// AddressPair is the From/Reply-To pair used for every message of one edit.
type AddressPair struct {
	From    string
	ReplyTo string // empty when the editor is the sender
}

// SenderPolicy decides whose address appears on outgoing mail.
type SenderPolicy struct {
	RevealEditorAddress      bool
	FromIsEditorWhenRevealed bool
	SystemAddress            string
	SystemName               string
	NoReplyAddress           string
}

// Resolve picks the From/Reply-To pair for mail about an edit by editor.
// The editor is revealed only when the policy allows it, the editor has a verified address,
// and the editor opted in; they then become Reply-To, or From if FromIsEditorWhenRevealed.
// PRE: SystemAddress is set
// POST: From is always non-empty
func (p SenderPolicy) Resolve(editor user.User) AddressPair {
	system := (&mail.Address{Name: p.SystemName, Address: p.SystemAddress}).String()
	if p.RevealEditorAddress && editor.HasVerifiedEmail() && editor.RevealAddress {
		if p.FromIsEditorWhenRevealed {
			return AddressPair{From: editor.MailAddress()}
		}
		return AddressPair{From: system, ReplyTo: editor.MailAddress()}
	}
	return AddressPair{From: system, ReplyTo: p.NoReplyAddress}
}

// Context is the per-edit bundle shared by every notification of that edit.
// It is built once and passed by value; nothing mutates it after construction.
type Context struct {
	DispatchID string
	Editor     user.User
	Page       wikititle.Title
	PageURL    string
	Summary    string
	Minor      bool
	Timestamp  time.Time
	Sender     AddressPair
	Change     category.Classification
}

// OutboundMessage is one mail for one recipient. It is handed to the transport and never stored.
type OutboundMessage struct {
	RecipientID int64
	To          string
	From        string
	ReplyTo     string
	Subject     string
	Text        string
	HTML        string // empty when no HTML template exists
}

// HasHTML reports whether an HTML alternative is attached.
func (m OutboundMessage) HasHTML() bool {
	return m.HTML != ""
}

// Failure records one failed unit of work.
type Failure struct {
	Category    string
	RecipientID int64 // 0 when the failure is not tied to a recipient
	Stage       Stage
	Err         error
}

// Error implements the error interface.
func (f Failure) Error() string {
	if f.RecipientID != 0 {
		return fmt.Sprintf("%s: category %q, recipient %d: %v", f.Stage, f.Category, f.RecipientID, f.Err)
	}
	return fmt.Sprintf("%s: category %q: %v", f.Stage, f.Category, f.Err)
}

// Unwrap exposes the underlying error to errors.Is.
func (f Failure) Unwrap() error {
	return f.Err
}

// CategoryOutcome summarises one category's dispatch round.
type CategoryOutcome struct {
	Category   string
	Recipients int
	Sent       int
}

// Report summarises the notifications for one edit.
type Report struct {
	DispatchID string
	Change     category.Kind
	Categories []CategoryOutcome
	Failures   []Failure
}

// Sent returns the number of messages accepted by the transport.
func (r Report) Sent() int {
	n := 0
	for _, c := range r.Categories {
		n += c.Sent
	}
	return n
}

// Err joins all failures, or returns nil when there were none.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
