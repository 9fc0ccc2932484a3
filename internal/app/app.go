package app

import (
	"context"
	"crypto/rand"
	"time"

	"golang.org/x/oauth2"

	"meeting-agent/internal/agent"
	"meeting-agent/internal/booking"
	"meeting-agent/internal/calendar"
	"meeting-agent/internal/config"
	"meeting-agent/internal/llm"
	"meeting-agent/internal/store"
)

// BookingStore is the ledger as seen by the HTTP layer.
type BookingStore interface {
	InsertBooking(ctx context.Context, b *store.Booking) error
	GetBooking(ctx context.Context, id string) (*store.Booking, error)
	ListBookings(ctx context.Context, from, to time.Time, filtered bool) ([]store.Booking, error)
}

// Deps are the optional external collaborators. A nil field disables the
// features that need it.
type Deps struct {
	Provider calendar.Provider
	Model    llm.ChatModel
	Store    BookingStore
}

// App holds everything a request handler needs. All fields are read-only
// after New.
type App struct {
	Config   *config.Config
	Provider calendar.Provider
	Store    BookingStore
	Tools    *agent.Toolbox
	Agent    *agent.Orchestrator
	OAuth    *oauth2.Config

	stateKey []byte
}

// New wires the scheduling stack from cfg and deps.
func New(cfg *config.Config, deps Deps) (*App, error) {
	hours := cfg.BusinessHours()

	var bookings *booking.Service
	if deps.Provider != nil {
		var ledger booking.Ledger
		if deps.Store != nil {
			ledger = deps.Store
		}
		bookings = booking.NewService(deps.Provider, ledger, booking.Options{
			CalendarID:       cfg.CalendarID,
			Hours:            hours,
			DefaultAttendees: cfg.DefaultAttendees,
		})
	}

	tools := agent.NewToolbox(deps.Provider, bookings, ToolboxConfig(cfg))

	a := &App{
		Config:   cfg,
		Provider: deps.Provider,
		Store:    deps.Store,
		Tools:    tools,
	}
	if deps.Model != nil {
		a.Agent = agent.NewOrchestrator(deps.Model, tools, agent.OrchestratorConfig{
			MaxIterations:   cfg.MaxIterations,
			MaxToolFailures: cfg.MaxToolFailures,
		})
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" && cfg.GoogleRedirectURL != "" {
		a.OAuth = calendar.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}

	a.stateKey = []byte(cfg.JWTSecret)
	if len(a.stateKey) == 0 {
		a.stateKey = make([]byte, 32)
		if _, err := rand.Read(a.stateKey); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// ToolboxConfig maps the process configuration onto the tool settings.
func ToolboxConfig(cfg *config.Config) agent.ToolboxConfig {
	return agent.ToolboxConfig{
		CalendarID:             cfg.CalendarID,
		Hours:                  cfg.BusinessHours(),
		MinFreeWindow:          cfg.MinFreeWindow,
		SlotQuery:              cfg.SlotQuery(),
		NextAvailabilityWindow: cfg.NextAvailWindow,
		MaxAvailabilitySpan:    cfg.MaxAvailabilitySpan,
		ContactEmail:           cfg.ContactEmail,
	}
}
