package config

import (
	"strings"
	"time"
	// Embedded zone database so the operating timezone resolves in slim images.
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"meeting-agent/internal/scheduling"
)

// Config is built once at process start and shared read-only by every request.
type Config struct {
	// Mode is "dev" or "prod".
	Mode     string
	Addr     string
	LogLevel string

	// Operating window.
	Timezone      string
	Location      *time.Location
	OpenHour      int
	CloseHour     int
	MinFreeWindow time.Duration

	// Next-slot scan.
	SlotDuration        time.Duration
	SlotStep            time.Duration
	SlotHorizon         time.Duration
	NextAvailWindow     time.Duration
	MaxAvailabilitySpan time.Duration

	// Google Calendar.
	CalendarID         string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleRefreshToken string

	DefaultAttendees []string
	ContactEmail     string

	// Reasoning engine.
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	MaxIterations   int
	MaxToolFailures int
	ChatTimeout     time.Duration

	// HTTP surface.
	RateLimitPerMinute int
	RateLimitBurst     int
	StaticTokens       []string
	JWTSecret          string

	// DatabaseURL enables the booking ledger when set.
	DatabaseURL string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "America/Sao_Paulo")
	v.SetDefault("open_hour", 9)
	v.SetDefault("close_hour", 18)
	v.SetDefault("min_free_window", scheduling.MinFreeWindow)
	v.SetDefault("slot_duration", time.Hour)
	v.SetDefault("slot_step", 30*time.Minute)
	v.SetDefault("slot_horizon", 14*24*time.Hour)
	v.SetDefault("next_availability_window", 7*24*time.Hour)
	v.SetDefault("max_availability_span", 31*24*time.Hour)
	v.SetDefault("calendar_id", "primary")
	v.SetDefault("default_attendees", "contato@kodano.com.br")
	v.SetDefault("contact_email", "contato@kodano.com.br")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("max_iterations", 6)
	v.SetDefault("max_tool_failures", 3)
	v.SetDefault("chat_timeout", 5*time.Minute)
	v.SetDefault("rate_limit_per_minute", 20)
	v.SetDefault("rate_limit_burst", 5)
}

// New returns a viper instance reading plain environment variables
// (GOOGLE_CLIENT_ID, OPENAI_API_KEY, DATABASE_URL, ...) over the defaults.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"google_client_id", "google_client_secret", "google_redirect_url", "google_refresh_token",
		"openai_api_key", "database_url", "static_tokens", "jwt_hmac_secret", "port",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

// Load resolves v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timezone %q", v.GetString("timezone"))
	}

	addr := v.GetString("addr")
	if port := v.GetString("port"); port != "" {
		addr = ":" + port
	}

	c := &Config{
		Mode:                v.GetString("mode"),
		Addr:                addr,
		LogLevel:            v.GetString("log_level"),
		Timezone:            loc.String(),
		Location:            loc,
		OpenHour:            v.GetInt("open_hour"),
		CloseHour:           v.GetInt("close_hour"),
		MinFreeWindow:       v.GetDuration("min_free_window"),
		SlotDuration:        v.GetDuration("slot_duration"),
		SlotStep:            v.GetDuration("slot_step"),
		SlotHorizon:         v.GetDuration("slot_horizon"),
		NextAvailWindow:     v.GetDuration("next_availability_window"),
		MaxAvailabilitySpan: v.GetDuration("max_availability_span"),
		CalendarID:          v.GetString("calendar_id"),
		GoogleClientID:      v.GetString("google_client_id"),
		GoogleClientSecret:  v.GetString("google_client_secret"),
		GoogleRedirectURL:   v.GetString("google_redirect_url"),
		GoogleRefreshToken:  v.GetString("google_refresh_token"),
		DefaultAttendees:    splitList(v.GetString("default_attendees")),
		ContactEmail:        v.GetString("contact_email"),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		OpenAIBaseURL:       v.GetString("openai_base_url"),
		OpenAIModel:         v.GetString("openai_model"),
		MaxIterations:       v.GetInt("max_iterations"),
		MaxToolFailures:     v.GetInt("max_tool_failures"),
		ChatTimeout:         v.GetDuration("chat_timeout"),
		RateLimitPerMinute:  v.GetInt("rate_limit_per_minute"),
		RateLimitBurst:      v.GetInt("rate_limit_burst"),
		StaticTokens:        splitList(v.GetString("static_tokens")),
		JWTSecret:           strings.TrimSpace(v.GetString("jwt_hmac_secret")),
		DatabaseURL:         v.GetString("database_url"),
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if _, err := scheduling.NewBusinessHours(c.Location, c.OpenHour, c.CloseHour); err != nil {
		return err
	}
	if c.SlotDuration <= 0 || c.SlotStep <= 0 || c.SlotHorizon <= 0 {
		return errors.New("slot duration, step and horizon must be positive")
	}
	if c.MaxIterations <= 0 {
		return errors.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.CalendarID == "" {
		return errors.New("calendar_id is required")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Mode != "prod"
}

// BusinessHours returns the operating window policy.
func (c *Config) BusinessHours() scheduling.BusinessHours {
	return scheduling.BusinessHours{Location: c.Location, OpenHour: c.OpenHour, CloseHour: c.CloseHour}
}

// SlotQuery returns the parameters of the next-slot scan.
func (c *Config) SlotQuery() scheduling.SlotQuery {
	return scheduling.SlotQuery{Duration: c.SlotDuration, Step: c.SlotStep, Horizon: c.SlotHorizon}
}

// CalendarConfigured reports whether the Google credentials needed to talk
// to the calendar backend are all present.
func (c *Config) CalendarConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRefreshToken != ""
}

// ModelConfigured reports whether a reasoning engine can be reached.
func (c *Config) ModelConfigured() bool {
	return c.OpenAIAPIKey != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
