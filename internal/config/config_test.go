package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(newTestViper())
	require.NoError(t, err)

	assert.Equal(t, "America/Sao_Paulo", c.Timezone)
	assert.Equal(t, 9, c.OpenHour)
	assert.Equal(t, 18, c.CloseHour)
	assert.Equal(t, 30*time.Minute, c.MinFreeWindow)
	assert.Equal(t, time.Hour, c.SlotDuration)
	assert.Equal(t, 14*24*time.Hour, c.SlotHorizon)
	assert.Equal(t, 7*24*time.Hour, c.NextAvailWindow)
	assert.Equal(t, []string{"contato@kodano.com.br"}, c.DefaultAttendees)
	assert.Equal(t, ":8080", c.Addr)
	assert.True(t, c.IsDev())
	assert.False(t, c.CalendarConfigured())
	assert.False(t, c.ModelConfigured())

	h := c.BusinessHours()
	assert.Equal(t, c.Location, h.Location)
}

func TestLoad_Overrides(t *testing.T) {
	v := newTestViper()
	v.Set("timezone", "UTC")
	v.Set("open_hour", 8)
	v.Set("close_hour", 17)
	v.Set("port", "9090")
	v.Set("default_attendees", "a@example.com; b@example.com ,")
	v.Set("google_client_id", "id")
	v.Set("google_client_secret", "secret")
	v.Set("google_refresh_token", "refresh")
	v.Set("slot_step", "15m")

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, c.Location)
	assert.Equal(t, ":9090", c.Addr)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, c.DefaultAttendees)
	assert.Equal(t, 15*time.Minute, c.SlotStep)
	assert.True(t, c.CalendarConfigured())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("timezone", func(t *testing.T) {
		v := newTestViper()
		v.Set("timezone", "Mars/Olympus")
		_, err := Load(v)
		assert.ErrorContains(t, err, "invalid timezone")
	})

	t.Run("hours", func(t *testing.T) {
		v := newTestViper()
		v.Set("open_hour", 18)
		v.Set("close_hour", 9)
		_, err := Load(v)
		assert.Error(t, err)
	})

	t.Run("iterations", func(t *testing.T) {
		v := newTestViper()
		v.Set("max_iterations", 0)
		_, err := Load(v)
		assert.Error(t, err)
	})
}
