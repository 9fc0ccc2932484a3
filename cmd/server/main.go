package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"meeting-agent/internal/agent"
	"meeting-agent/internal/app"
	"meeting-agent/internal/booking"
	"meeting-agent/internal/calendar"
	"meeting-agent/internal/config"
	"meeting-agent/internal/llm"
	"meeting-agent/internal/server"
	"meeting-agent/internal/store"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "meeting-agent",
		Short:         "Conversational meeting scheduling service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	}

	flags := root.PersistentFlags()
	flags.String("mode", "dev", `run mode, "dev" or "prod"`)
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("timezone", "America/Sao_Paulo", "IANA zone of the operating calendar")
	flags.String("calendar-id", "primary", "Google Calendar id")
	for key, name := range map[string]string{
		"mode":        "mode",
		"addr":        "addr",
		"log_level":   "log-level",
		"timezone":    "timezone",
		"calendar_id": "calendar-id",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), v)
			},
		},
		newAvailabilityCommand(v),
		newNextSlotCommand(v),
	)
	return root
}

func newAvailabilityCommand(v *viper.Viper) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print the free windows between two instants",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]string{"startDateTime": from, "endDateTime": to})
			if err != nil {
				return err
			}
			return runTool(cmd.Context(), v, agent.CheckAvailability, string(payload))
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "window start, RFC 3339 or 2006-01-02T15:04")
	cmd.Flags().StringVar(&to, "to", "", "window end, RFC 3339 or 2006-01-02T15:04")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newNextSlotCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "next-slot",
		Short: "Print the earliest bookable slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd.Context(), v, agent.GetNextAvailability, "{}")
		},
	}
}

func serve(ctx context.Context, v *viper.Viper) error {
	cfg, err := setup(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := app.Deps{}
	if provider := newProvider(ctx, cfg); provider != nil {
		deps.Provider = provider
	}
	if cfg.ModelConfigured() {
		deps.Model = llm.NewOpenAIModel(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	} else {
		slog.Warn("OPENAI_API_KEY not set, chat endpoint disabled")
	}
	if cfg.DatabaseURL != "" {
		st, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		deps.Store = st
	}

	a, err := app.New(cfg, deps)
	if err != nil {
		return errors.Wrap(err, "failed to build app")
	}

	slog.Info("starting meeting agent",
		"mode", cfg.Mode,
		"timezone", cfg.Timezone,
		"calendar", deps.Provider != nil,
		"model", deps.Model != nil,
		"ledger", deps.Store != nil)
	return server.Run(ctx, a.Router(), cfg.Addr)
}

// runTool executes one tool against the live calendar and prints its JSON.
func runTool(ctx context.Context, v *viper.Viper, kind agent.ToolKind, arguments string) error {
	cfg, err := setup(v)
	if err != nil {
		return err
	}

	var bookings *booking.Service
	provider := newProvider(ctx, cfg)
	var p calendar.Provider
	if provider != nil {
		p = provider
		bookings = booking.NewService(p, nil, booking.Options{
			CalendarID:       cfg.CalendarID,
			Hours:            cfg.BusinessHours(),
			DefaultAttendees: cfg.DefaultAttendees,
		})
	}

	tools := agent.NewToolbox(p, bookings, app.ToolboxConfig(cfg))
	res := tools.Execute(ctx, kind.String(), arguments)
	fmt.Println(res.JSON())
	if !res.OK {
		return errors.Errorf("%s failed", kind)
	}
	return nil
}

func setup(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg))
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// newProvider returns nil when the calendar backend is not configured so
// the service still starts in degraded mode.
func newProvider(ctx context.Context, cfg *config.Config) *calendar.GoogleProvider {
	if !cfg.CalendarConfigured() {
		slog.Warn("Google Calendar credentials missing, calendar tools will answer with the contact fallback")
		return nil
	}
	p, err := calendar.NewGoogleProvider(ctx, calendar.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		RefreshToken: cfg.GoogleRefreshToken,
	}, cfg.Location)
	if err != nil {
		slog.Error("failed to create calendar provider", "error", err)
		return nil
	}
	return p
}
