package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Booking.OTPTTL)
	assert.Equal(t, 3, cfg.Booking.OTPMaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Booking.LeadTime)
	assert.Equal(t, time.Minute, cfg.Booking.SweepInterval)
	assert.Equal(t, "booking.lifecycle", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)

	loc, err := cfg.Booking.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("OTP_MAX_ATTEMPTS", "5")
	t.Setenv("BOOKING_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Booking.OTPMaxAttempts)
}

func TestLoad_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err, "secret is required")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BOOKING_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)
}
