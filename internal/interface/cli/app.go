package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/x/term"
	"github.com/neilberkman/pitchside/internal/core/api"
	"github.com/neilberkman/pitchside/internal/core/auth"
	"github.com/neilberkman/pitchside/internal/core/chat"
	"github.com/neilberkman/pitchside/internal/core/config"
	"github.com/neilberkman/pitchside/internal/core/db"
	"github.com/neilberkman/pitchside/internal/core/history"
	"github.com/neilberkman/pitchside/internal/core/prompts"
	"github.com/neilberkman/pitchside/internal/core/quota"
	"github.com/neilberkman/pitchside/internal/core/storage"
	"github.com/neilberkman/pitchside/internal/core/storage/redis"
	"github.com/neilberkman/pitchside/internal/logging"
	"github.com/rs/zerolog"
)

// app is everything a command needs, built from config and flags
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    storage.Store
	cache    *db.DB
	client   *api.Client
	auth     *auth.Session
	quota    *quota.Counter
	history  *history.Reconciler
	prompts  prompts.Set
	closeLog func() error
}

type appOptions struct {
	// logToFile keeps log output off a full-screen terminal
	logToFile bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg)

	logOpts := logging.Options{Level: cfg.Log.Level}
	if opts.logToFile {
		logOpts.File = cfg.Log.File
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, closeLog: closeLog}

	a.store, a.cache, err = openStore(ctx, cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	a.auth = auth.NewSession(a.store, logger.With().Str("component", "auth").Logger())
	a.client = api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.RequestTimeout),
		api.WithAuthURL(cfg.API.AuthBaseURL),
		api.WithTokenSource(a.auth),
		api.WithLogger(logger.With().Str("component", "api").Logger()),
	)
	a.quota = quota.NewCounter(a.store, cfg.Chat.DailyFreeLimit,
		quota.WithLogger(logger.With().Str("component", "quota").Logger()))

	histOpts := []history.Option{
		history.WithPageSize(cfg.Chat.HistoryPageSize),
		history.WithLogger(logger.With().Str("component", "history").Logger()),
	}
	if a.cache != nil {
		histOpts = append(histOpts, history.WithTranscriptCache(a.cache))
	}
	a.history = history.New(a.client, a.store, histOpts...)

	a.prompts = prompts.Set{
		WelcomeTemplate: cfg.Prompts.Welcome,
		BannerTemplate:  cfg.Prompts.Banner,
		UpgradeTemplate: cfg.Prompts.Upgrade,
	}
	if err := a.prompts.Validate(); err != nil {
		logger.Warn().Err(err).Msg("using built-in prompt templates")
		a.prompts = prompts.Defaults()
	}

	return a, nil
}

func applyFlags(cfg *config.Config) {
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if storeFlag != "" {
		cfg.Storage.Backend = storeFlag
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

// openStore returns the configured store; the *db.DB is non-nil only for
// the sqlite backend, which also caches transcripts.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Store, *db.DB, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemory(), nil, nil
	case "redis":
		store, err := redis.New(ctx, redis.Config{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Prefix:   cfg.Storage.RedisPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Debug().Str("addr", cfg.Storage.RedisAddr).Msg("using redis store")
		return store, nil, nil
	default:
		database, err := db.New(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return database, database, nil
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close store")
	}
	_ = a.closeLog()
}

// authenticated reports whether a usable token is stored
func (a *app) authenticated(ctx context.Context) bool {
	_, err := a.auth.Token(ctx)
	if errors.Is(err, auth.ErrTokenExpired) {
		a.logger.Info().Msg("stored session expired, falling back to free mode")
	}
	return err == nil
}

// requireAuth fails with a login hint when no usable token is stored
func (a *app) requireAuth(ctx context.Context) error {
	if _, err := a.auth.Token(ctx); err != nil {
		return fmt.Errorf("%w (run 'pitchside login')", err)
	}
	return nil
}

// newController wires a chat controller for mode
func (a *app) newController(mode chat.Mode, hooks chat.Hooks) (*chat.Controller, error) {
	cfg := chat.Config{
		Mode:           mode,
		TypingSpeed:    a.cfg.Chat.TypingSpeed,
		StartDelay:     a.cfg.Chat.StartDelay,
		RequestTimeout: a.cfg.API.RequestTimeout,
		Hooks:          hooks,
		Logger:         a.logger.With().Str("component", "chat").Str("mode", mode.String()).Logger(),
	}
	if mode == chat.ModeAuthenticated {
		cfg.Sender = api.UserChat{Client: a.client}
	} else {
		cfg.Sender = api.FreeChat{Client: a.client}
		cfg.Quota = a.quota
	}
	return chat.NewController(cfg)
}

// isTerminal reports whether w writes to a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(f.Fd())
}
