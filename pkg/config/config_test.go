package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.False(t, cfg.DB.Enabled())
	assert.Equal(t, 2*time.Second, cfg.DB.LockTimeout)
	assert.True(t, cfg.DB.AutoMigrate)
	assert.Equal(t, "agromarket.sales", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Sales.RecentLimit)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("DB_HOST", "db")
	v.Set("DB_PASSWORD", "p@ss:word")
	v.Set("DB_LOCK_TIMEOUT", "750ms")
	v.Set("OUTBOX_POLL_INTERVAL", "1500")
	v.Set("KAFKA_BROKERS", "k1:9092, k2:9092,")
	v.Set("SALES_RECENT_LIMIT", "8")
	v.Set("DB_AUTO_MIGRATE", "false")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.True(t, cfg.DB.Enabled())
	assert.Equal(t, 750*time.Millisecond, cfg.DB.LockTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Sales.RecentLimit)
	assert.False(t, cfg.DB.AutoMigrate)
	assert.Contains(t, cfg.DB.ConnectionString(), "p%40ss%3Aword@db:5432/agromarket")
}

func TestFromViper_Invalido(t *testing.T) {
	v := viper.New()
	v.Set("SALES_RECENT_LIMIT", "0")
	_, err := FromViper(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("APP_ENV", "production")
	_, err = FromViper(v)
	assert.Error(t, err)
}
