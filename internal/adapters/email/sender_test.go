package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"categorywatch/internal/adapters/http/perf"
)

type stubSender struct {
	err error
}

// Send returns a fixed result or the configured error.
// PRE: none
// POST: Returns err if set
func (s stubSender) Send(_ context.Context, _ SendRequest) (SendResult, error) {
	if s.err != nil {
		return SendResult{}, s.err
	}
	return SendResult{MessageID: "stub"}, nil
}

func TestNoopSender_Send(t *testing.T) {
	res, err := NewNoopSender().Send(context.Background(), SendRequest{To: []string{"a@example.org"}, Subject: "hi"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.MessageID, "noop-"))
	assert.False(t, res.SentAt.IsZero())
}

func TestBuildResendRequest(t *testing.T) {
	p := buildResendRequest(SendRequest{
		To:      []string{"a@example.org"},
		ReplyTo: "editor@example.org",
		Subject: "s",
		Text:    "plain",
		HTML:    "<p>html</p>",
	}, "wiki@example.org")

	assert.Equal(t, "wiki@example.org", p.From)
	assert.Equal(t, []string{"a@example.org"}, p.To)
	assert.Equal(t, "editor@example.org", p.ReplyTo)
	assert.Equal(t, "plain", p.Text)
	assert.Equal(t, "<p>html</p>", p.Html)

	explicit := buildResendRequest(SendRequest{To: []string{"a@example.org"}, From: "editor@example.org"}, "wiki@example.org")
	assert.Equal(t, "editor@example.org", explicit.From)
	assert.Empty(t, explicit.ReplyTo)
}

func TestResendSender_RequiresRecipient(t *testing.T) {
	_, err := NewResendSender("re_test", "wiki@example.org").Send(context.Background(), SendRequest{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestTimedSender_RecordsSends(t *testing.T) {
	collector := perf.NewCollector(10)
	ok := NewTimedSender(stubSender{}, collector)
	failing := NewTimedSender(stubSender{err: errors.New("boom")}, collector)

	res, err := ok.Send(context.Background(), SendRequest{To: []string{"a@example.org"}})
	require.NoError(t, err)
	assert.Equal(t, "stub", res.MessageID)

	_, err = failing.Send(context.Background(), SendRequest{To: []string{"a@example.org"}})
	assert.EqualError(t, err, "boom")

	assert.Equal(t, int64(2), collector.TotalRecorded())
	snap := collector.Snapshot(time.Time{}, 5)
	assert.Equal(t, 2, snap.Sends)
	assert.Equal(t, 1, snap.FailedSends)
}

func TestTimedSender_NilCollector(t *testing.T) {
	_, err := NewTimedSender(stubSender{}, nil).Send(context.Background(), SendRequest{To: []string{"a@example.org"}})
	assert.NoError(t, err)
}
