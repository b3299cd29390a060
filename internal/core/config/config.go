// Package config loads ~/.config/pitchside/config.toml with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL        = "https://ai-dashboard-task-backend-1.onrender.com"
	DefaultRequestTimeout = 30 * time.Second
	DefaultDailyFreeLimit = 3
	DefaultTypingSpeed    = 20 * time.Millisecond
	DefaultPageSize       = 50
	envPrefix             = "PITCHSIDE"
)

var (
	// ErrExists is returned by WriteDefault when the file is already there
	ErrExists = errors.New("config file already exists")
	// ErrNoFile is returned by Watch when there is no file to watch
	ErrNoFile = errors.New("config file does not exist")
)

// Config holds all client configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Prompts PromptsConfig `mapstructure:"prompts"`

	// Path is the file the config was read from, empty when none existed
	Path string `mapstructure:"-"`
}

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	AuthBaseURL    string        `mapstructure:"auth_base_url" validate:"omitempty,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

type ChatConfig struct {
	DailyFreeLimit  int           `mapstructure:"daily_free_limit" validate:"gt=0"`
	TypingSpeed     time.Duration `mapstructure:"typing_speed" validate:"gt=0"`
	StartDelay      time.Duration `mapstructure:"start_delay" validate:"gte=0"`
	HistoryPageSize int           `mapstructure:"history_page_size" validate:"gt=0,lte=200"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=sqlite redis memory"`
	Path          string `mapstructure:"path" validate:"required_if=Backend sqlite"`
	RedisAddr     string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error disabled"`
	File  string `mapstructure:"file"`
}

// PromptsConfig overrides the mustache templates; empty means built-in
type PromptsConfig struct {
	Welcome string `mapstructure:"welcome"`
	Banner  string `mapstructure:"banner"`
	Upgrade string `mapstructure:"upgrade"`
}

// Dir returns ~/.config/pitchside
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".pitchside")
	}
	return filepath.Join(home, ".config", "pitchside")
}

// DefaultPath returns the config file location
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads path (DefaultPath when empty), a .env file from the working
// directory or the config directory, and PITCHSIDE_* variables, in
// increasing precedence. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, *viper.Viper, error) {
	if path == "" {
		path = DefaultPath()
	}

	for _, p := range []string{".env", filepath.Join(filepath.Dir(path), ".env")} {
		_ = godotenv.Load(p)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
		found = false
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	if found {
		cfg.Path = path
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls onChange with the reloaded config each time the file at path
// is written. It returns ErrNoFile when the file does not exist.
func Watch(path string, onChange func(*Config, error)) error {
	cfg, v, err := load(path)
	if err != nil {
		return err
	}
	if cfg.Path == "" {
		return ErrNoFile
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if next != nil {
			next.Path = cfg.Path
		}
		onChange(next, err)
	})
	v.WatchConfig()
	return nil
}

func setDefaults(v *viper.Viper) {
	dir := Dir()

	// API
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.auth_base_url", "")
	v.SetDefault("api.request_timeout", DefaultRequestTimeout)

	// Chat
	v.SetDefault("chat.daily_free_limit", DefaultDailyFreeLimit)
	v.SetDefault("chat.typing_speed", DefaultTypingSpeed)
	v.SetDefault("chat.start_delay", time.Duration(0))
	v.SetDefault("chat.history_page_size", DefaultPageSize)

	// Storage
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", filepath.Join(dir, "pitchside.db"))
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.redis_prefix", "pitchside:")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "pitchside.log"))

	// Prompts
	v.SetDefault("prompts.welcome", "")
	v.SetDefault("prompts.banner", "")
	v.SetDefault("prompts.upgrade", "")
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", strings.ToLower(fe.Namespace()), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// fileConfig is the on-disk layout written by WriteDefault
type fileConfig struct {
	API struct {
		BaseURL        string `toml:"base_url"`
		AuthBaseURL    string `toml:"auth_base_url,omitempty"`
		RequestTimeout string `toml:"request_timeout"`
	} `toml:"api"`
	Chat struct {
		DailyFreeLimit  int    `toml:"daily_free_limit"`
		TypingSpeed     string `toml:"typing_speed"`
		StartDelay      string `toml:"start_delay"`
		HistoryPageSize int    `toml:"history_page_size"`
	} `toml:"chat"`
	Storage struct {
		Backend     string `toml:"backend"`
		Path        string `toml:"path"`
		RedisAddr   string `toml:"redis_addr"`
		RedisDB     int    `toml:"redis_db"`
		RedisPrefix string `toml:"redis_prefix"`
	} `toml:"storage"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
}

func (c *Config) toFile() fileConfig {
	var f fileConfig
	f.API.BaseURL = c.API.BaseURL
	f.API.AuthBaseURL = c.API.AuthBaseURL
	f.API.RequestTimeout = c.API.RequestTimeout.String()
	f.Chat.DailyFreeLimit = c.Chat.DailyFreeLimit
	f.Chat.TypingSpeed = c.Chat.TypingSpeed.String()
	f.Chat.StartDelay = c.Chat.StartDelay.String()
	f.Chat.HistoryPageSize = c.Chat.HistoryPageSize
	f.Storage.Backend = c.Storage.Backend
	f.Storage.Path = c.Storage.Path
	f.Storage.RedisAddr = c.Storage.RedisAddr
	f.Storage.RedisDB = c.Storage.RedisDB
	f.Storage.RedisPrefix = c.Storage.RedisPrefix
	f.Log.Level = c.Log.Level
	f.Log.File = c.Log.File
	return f
}

// Default returns the configuration used when no file exists
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return ErrExists
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString("# pitchside configuration. Environment variables PITCHSIDE_<SECTION>_<KEY> override these.\n\n"); err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(Default().toFile()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
