// Package config loads and validates the daemon configuration from the
// environment. Configuration is read once at startup and treated as
// immutable afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Maxi49/dailymessaging/internal/schedule"
)

// Environment variable names. The PHONE_NUMBER / MY_PHONE_NUMBER fallbacks
// are kept for compatibility with older deployments.
const (
	EnvRecipient  = "DM_RECIPIENT"
	EnvPairPhone  = "DM_PAIR_PHONE"
	EnvOpenTime   = "DM_OPEN_TIME"
	EnvMsgTime    = "DM_MESSAGE_TIME"
	EnvCloseTime  = "DM_CLOSE_TIME"
	EnvTZOffset   = "DM_TZ_OFFSET_MINUTES"
	EnvMessages   = "DM_MESSAGES"
	EnvDBPath     = "DM_DB_PATH"
	EnvLogDir     = "DM_LOG_DIR"
	EnvLogLevel   = "DM_LOG_LEVEL"
	EnvPairGrace  = "DM_PAIRING_GRACE"
	EnvCloseGrace = "DM_CLOSE_GRACE"

	envLegacyRecipient = "PHONE_NUMBER"
	envLegacyPairPhone = "MY_PHONE_NUMBER"
)

// messageSeparator splits the DM_MESSAGES value into the message pool.
const messageSeparator = "||"

// ErrInvalidSchedule is returned when the configured open/message/close
// times are not ordered open <= message <= close on the same reference
// day. Bad ordering is a startup error, never a runtime state.
var ErrInvalidSchedule = errors.New("schedule times out of order")

// Config is the full daemon configuration.
type Config struct {
	// Recipient is the phone number the daily message is sent to.
	Recipient string

	// PairPhone, when set, requests a phone pairing code for this
	// number instead of printing a QR code on first-time pairing.
	PairPhone string

	// OpenAt, MessageAt and CloseAt are local times of day in the
	// target timezone. The session is connected during
	// [OpenAt, CloseAt) and the message goes out at MessageAt.
	OpenAt    schedule.TimeOfDay
	MessageAt schedule.TimeOfDay
	CloseAt   schedule.TimeOfDay

	// TZOffsetMinutes is the fixed UTC offset of the target timezone
	// in minutes (e.g. -180 for UTC-03:00).
	TZOffsetMinutes int

	// Messages is the pool the daily message is drawn from.
	Messages []string

	// DBPath is the SQLite file holding both the device credentials
	// and the delivery journal.
	DBPath string

	// LogDir is the directory for the rotating log file. Empty
	// disables file logging.
	LogDir string

	// LogLevel is the log level name.
	LogLevel string

	// PairingGrace is how long to wait after the initial forced open
	// before evaluating the window, giving a first-time pairing scan a
	// chance to complete.
	PairingGrace time.Duration

	// CloseGrace is the additional wait before closing an
	// out-of-window startup session.
	CloseGrace time.Duration
}

// defaultMessages mirrors the original deployment's pool.
var defaultMessages = []string{
	"Recordá tomar la pastilla mi amor ❤️",
	"La pastillita mi amor 💕",
	"Pastillita del día mi amor 💘",
	"No te olvides la pastilla mi amor 💖",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OpenAt:          schedule.TimeOfDay{Hour: 22, Minute: 25},
		MessageAt:       schedule.TimeOfDay{Hour: 22, Minute: 30},
		CloseAt:         schedule.TimeOfDay{Hour: 22, Minute: 35},
		TZOffsetMinutes: -180,
		Messages:        defaultMessages,
		DBPath:          defaultFilePath("dailymsg.db"),
		LogDir:          defaultFilePath("logs"),
		LogLevel:        "info",
		PairingGrace:    time.Minute,
		CloseGrace:      time.Minute,
	}
}

// Load builds the configuration from defaults, an optional .env file and
// the process environment, then validates it. A missing .env file is not
// an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("unable to load env file "+
				"%s: %w", envFile, err)
		}
	} else {
		// Best-effort load of a local .env.
		_ = godotenv.Load()
	}

	cfg := Default()

	cfg.Recipient = envOr(EnvRecipient, envOr(
		envLegacyRecipient, cfg.Recipient,
	))
	cfg.PairPhone = envOr(EnvPairPhone, envOr(
		envLegacyPairPhone, cfg.PairPhone,
	))
	cfg.DBPath = envOr(EnvDBPath, cfg.DBPath)
	cfg.LogDir = envOr(EnvLogDir, cfg.LogDir)
	cfg.LogLevel = envOr(EnvLogLevel, cfg.LogLevel)

	var err error
	if cfg.OpenAt, err = envTime(EnvOpenTime, cfg.OpenAt); err != nil {
		return nil, err
	}
	if cfg.MessageAt, err = envTime(EnvMsgTime, cfg.MessageAt); err != nil {
		return nil, err
	}
	if cfg.CloseAt, err = envTime(EnvCloseTime, cfg.CloseAt); err != nil {
		return nil, err
	}

	if raw := os.Getenv(EnvTZOffset); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTZOffset,
				err)
		}
		cfg.TZOffsetMinutes = offset
	}

	if raw := os.Getenv(EnvMessages); raw != "" {
		cfg.Messages = splitMessages(raw)
	}

	if cfg.PairingGrace, err = envDuration(
		EnvPairGrace, cfg.PairingGrace,
	); err != nil {
		return nil, err
	}
	if cfg.CloseGrace, err = envDuration(
		EnvCloseGrace, cfg.CloseGrace,
	); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for startup errors. Any failure here
// is fatal: running with a silently wrong schedule is worse than refusing
// to start.
func (c *Config) Validate() error {
	if c.Recipient == "" {
		return fmt.Errorf("no recipient configured (set %s)",
			EnvRecipient)
	}
	if len(c.Messages) == 0 {
		return fmt.Errorf("empty message pool (set %s)", EnvMessages)
	}
	for _, tod := range []schedule.TimeOfDay{
		c.OpenAt, c.MessageAt, c.CloseAt,
	} {
		if !tod.Valid() {
			return fmt.Errorf("time of day %v out of range", tod)
		}
	}

	// Offsets beyond UTC-12:00..UTC+14:00 do not exist.
	if c.TZOffsetMinutes < -720 || c.TZOffsetMinutes > 840 {
		return fmt.Errorf("timezone offset %d minutes out of range",
			c.TZOffsetMinutes)
	}

	// Project message and close onto the day starting at the open
	// time; the window may cross midnight but the ordering
	// open <= message <= close must hold on that reference day.
	rel := func(t schedule.TimeOfDay) int {
		minutes := t.MinuteOfDay() - c.OpenAt.MinuteOfDay()

		return (minutes + 24*60) % (24 * 60)
	}
	if c.OpenAt == c.CloseAt {
		return fmt.Errorf("%w: open and close are both %v",
			ErrInvalidSchedule, c.OpenAt)
	}
	if rel(c.MessageAt) > rel(c.CloseAt) {
		return fmt.Errorf("%w: open=%v message=%v close=%v",
			ErrInvalidSchedule, c.OpenAt, c.MessageAt, c.CloseAt)
	}

	return nil
}

// Zone returns the fixed-offset location all deadlines are computed in.
func (c *Config) Zone() *time.Location {
	return schedule.FixedZone(c.TZOffsetMinutes)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envTime(key string, fallback schedule.TimeOfDay) (schedule.TimeOfDay,
	error) {

	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	tod, err := schedule.ParseTimeOfDay(raw)
	if err != nil {
		return schedule.TimeOfDay{}, fmt.Errorf("invalid %s: %w",
			key, err)
	}

	return tod, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return d, nil
}

func splitMessages(raw string) []string {
	var messages []string
	for _, part := range strings.Split(raw, messageSeparator) {
		part = strings.TrimSpace(part)
		if part != "" {
			messages = append(messages, part)
		}
	}

	return messages
}

func defaultFilePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}

	return filepath.Join(home, ".dailymsg", name)
}
