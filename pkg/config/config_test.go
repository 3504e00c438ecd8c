package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KAFKA_ADDR", "")
	t.Setenv("VOUCHER_SAVE_CARDS", "")

	cfg := Load()

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.Interval)
	assert.False(t, cfg.Module.VoucherConfig().IsSaveCards())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_ADDR", "k1:9092, k2:9092,")
	t.Setenv("OUTBOX_LEASE", "30s")
	t.Setenv("OUTBOX_BATCH_SIZE", "7")
	t.Setenv("VOUCHER_SAVE_CARDS", "true")
	t.Setenv("OUTBOX_MAX_RETRIES", "not-a-number")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.Outbox.Lease)
	assert.Equal(t, 7, cfg.Outbox.BatchSize)
	assert.Equal(t, 5, cfg.Outbox.MaxRetries)
	assert.True(t, cfg.Module.VoucherConfig().IsSaveCards())
}
