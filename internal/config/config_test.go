package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Maxi49/dailymessaging/internal/schedule"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Recipient = "5493511234567"

	return cfg
}

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRequiresRecipient(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.MessageAt = schedule.TimeOfDay{Hour: 22, Minute: 40}

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestValidateRejectsEqualOpenClose(t *testing.T) {
	cfg := validConfig()
	cfg.CloseAt = cfg.OpenAt

	require.ErrorIs(t, cfg.Validate(), ErrInvalidSchedule)
}

func TestValidateAllowsMidnightWrap(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAt = schedule.TimeOfDay{Hour: 23, Minute: 50}
	cfg.MessageAt = schedule.TimeOfDay{Hour: 0, Minute: 5}
	cfg.CloseAt = schedule.TimeOfDay{Hour: 0, Minute: 15}

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsAbsurdOffset(t *testing.T) {
	cfg := validConfig()
	cfg.TZOffsetMinutes = 900

	require.Error(t, cfg.Validate())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv(EnvRecipient, "5493519876543")
	t.Setenv(EnvOpenTime, "21:00")
	t.Setenv(EnvMsgTime, "21:15")
	t.Setenv(EnvCloseTime, "21:30")
	t.Setenv(EnvTZOffset, "-120")
	t.Setenv(EnvMessages, "hola || que tal ||")
	t.Setenv(EnvPairGrace, "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "5493519876543", cfg.Recipient)
	require.Equal(t, schedule.TimeOfDay{Hour: 21, Minute: 0}, cfg.OpenAt)
	require.Equal(t, schedule.TimeOfDay{Hour: 21, Minute: 15}, cfg.MessageAt)
	require.Equal(t, schedule.TimeOfDay{Hour: 21, Minute: 30}, cfg.CloseAt)
	require.Equal(t, -120, cfg.TZOffsetMinutes)
	require.Equal(t, []string{"hola", "que tal"}, cfg.Messages)
	require.Equal(t, 30*time.Second, cfg.PairingGrace)
}

func TestLoadLegacyRecipientVar(t *testing.T) {
	t.Setenv(envLegacyRecipient, "5493511111111")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "5493511111111", cfg.Recipient)
}

func TestLoadRejectsBadTime(t *testing.T) {
	t.Setenv(EnvRecipient, "5493511234567")
	t.Setenv(EnvMsgTime, "25:99")

	_, err := Load("")
	require.Error(t, err)
}

func TestZoneUsesFixedOffset(t *testing.T) {
	cfg := validConfig()

	now := time.Date(2025, 6, 10, 13, 0, 0, 0, time.UTC)
	require.Equal(t, 10, now.In(cfg.Zone()).Hour())
}
