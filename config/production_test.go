package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProductionConfigDefaults(t *testing.T) {
	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 100, cfg.Delivery.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Delivery.MessagePacing)
	assert.Equal(t, time.Second, cfg.Delivery.EmailBatchPacing)
	assert.Equal(t, 10000, cfg.Delivery.MaxRecipients)
	assert.Equal(t, 8, cfg.Links.ShortCodeLength)
	assert.Equal(t, time.Minute, cfg.Scheduler.ScanInterval)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadProductionConfigEnvOverrides(t *testing.T) {
	t.Setenv("DELIVERY_BATCH_SIZE", "25")
	t.Setenv("DELIVERY_MESSAGE_PACING", "500ms")
	t.Setenv("SHORT_LINK_DOMAIN", "https://go.example.com")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Delivery.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Delivery.MessagePacing)
	assert.Equal(t, "https://go.example.com", cfg.Links.ShortLinkDomain)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())
}

func TestValidateProductionConfig(t *testing.T) {
	valid := func() *ProductionConfig {
		return &ProductionConfig{
			Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "outreach"},
			Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
			Delivery: DeliveryConfig{BatchSize: 100, MaxRecipients: 10000},
			Links:    LinksConfig{ShortLinkDomain: "http://localhost:8080", ShortCodeLength: 8},
		}
	}

	require.NoError(t, ValidateProductionConfig(valid()))

	cfg := valid()
	cfg.Links.ShortCodeLength = 2
	err := ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHORT_CODE_LENGTH")

	cfg = valid()
	cfg.Delivery.BatchSize = 0
	cfg.Database.Name = ""
	err = ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELIVERY_BATCH_SIZE")
	assert.Contains(t, err.Error(), "DB_NAME")
}

func TestDatabaseDSN(t *testing.T) {
	dsn := DatabaseConfig{
		Host: "db", Port: 5432, Name: "outreach", User: "app", Password: "secret", SSLMode: "disable",
	}.DSN()

	assert.Contains(t, dsn, "host=db")
	assert.Contains(t, dsn, "dbname=outreach")
	assert.Contains(t, dsn, "sslmode=disable")
}
