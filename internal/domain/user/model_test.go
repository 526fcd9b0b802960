package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_DisplayName(t *testing.T) {
	u := User{ID: 1, Name: "Ada", RealName: "Ada Lovelace"}
	assert.Equal(t, "Ada Lovelace", u.DisplayName(true))
	assert.Equal(t, "Ada", u.DisplayName(false))

	noReal := User{ID: 2, Name: "Bob"}
	assert.Equal(t, "Bob", noReal.DisplayName(true))
}

func TestUser_CanReceiveWatchNotification(t *testing.T) {
	base := User{ID: 1, Name: "Ada", Email: "ada@example.org", EmailConfirmed: true, NotifyOnWatchedChange: true}
	assert.True(t, base.CanReceiveWatchNotification())

	off := base
	off.NotifyOnWatchedChange = false
	assert.False(t, off.CanReceiveWatchNotification())

	unconfirmed := base
	unconfirmed.EmailConfirmed = false
	assert.False(t, unconfirmed.CanReceiveWatchNotification())

	noAddress := base
	noAddress.Email = ""
	assert.False(t, noAddress.CanReceiveWatchNotification())
}

func TestUser_Anonymous(t *testing.T) {
	anon := Anonymous("192.0.2.7")
	assert.True(t, anon.IsAnonymous())
	assert.Equal(t, "192.0.2.7", anon.Name)
	assert.False(t, anon.HasVerifiedEmail())
}

func TestUser_Validate(t *testing.T) {
	u := User{ID: 1, Name: "  "}
	assert.ErrorIs(t, u.Validate(), ErrEmptyName)
	u.Name = "Ada"
	assert.NoError(t, u.Validate())
}

func TestUser_MailAddress(t *testing.T) {
	u := User{ID: 1, Name: "Ada", RealName: "Ada Lovelace", Email: "ada@example.org"}
	assert.Equal(t, `"Ada Lovelace" <ada@example.org>`, u.MailAddress())
}

func TestParseTimeCorrection(t *testing.T) {
	server := time.UTC
	instant := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	offsetOf := func(pref string) int {
		_, off := instant.In(ParseTimeCorrection(pref, server)).Zone()
		return off / 60
	}

	assert.Equal(t, 0, offsetOf(""))
	assert.Equal(t, 0, offsetOf("System|120"))
	assert.Equal(t, -300, offsetOf("Offset|-300"))
	assert.Equal(t, 330, offsetOf("+05:30"))
	assert.Equal(t, -180, offsetOf("-3"))
	assert.Equal(t, 14*60, offsetOf("Offset|2000"))
	assert.Equal(t, 0, offsetOf("garbage"))
	assert.Equal(t, 90, offsetOf("ZoneInfo|90|Nowhere/Unknown"))
}

func TestParseTimeCorrection_ZoneInfo(t *testing.T) {
	loc := ParseTimeCorrection("ZoneInfo|60|UTC", time.Local)
	assert.Equal(t, "UTC", loc.String())
}

func TestUser_LocalTime(t *testing.T) {
	u := User{ID: 1, Name: "Ada", TimeCorrection: "Offset|60"}
	instant := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)

	local := u.LocalTime(instant, time.UTC)
	assert.True(t, local.Equal(instant))
	assert.Equal(t, 0, local.Hour())
	assert.Equal(t, 2, local.Day())
}
