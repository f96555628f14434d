package resultlog

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.False(t, Config{}.Enabled())
	assert.NoError(t, Config{Type: "redis", Address: "localhost:6379"}.Validate())
	assert.Error(t, Config{Type: "redis"}.Validate())
	assert.Error(t, Config{Type: "redis", Address: "x:1", TTL: -1}.Validate())
	assert.Error(t, Config{Type: "etcd"}.Validate())
}

func TestNewResult(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)

	ok := NewResult("users", start, end, 10, 9, 1, nil)
	assert.Equal(t, "success", ok.Status)
	assert.Equal(t, int64(1500), ok.DurationMs)
	assert.Nil(t, ok.Error)

	failed := NewResult("users", start, end, 3, 0, 0, errors.New("boom"))
	assert.Equal(t, "failed", failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "boom", *failed.Error)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "csvnorm:pipeline:users:state", StateKey("users"))
	assert.Equal(t, "csvnorm:pipeline:users", EventChannel("users"))
}

// TestRedisPublisher_Integration требует Redis (CSVNORM_REDIS_ADDR=localhost:6379)
func TestRedisPublisher_Integration(t *testing.T) {
	addr := os.Getenv("CSVNORM_REDIS_ADDR")
	if addr == "" {
		t.Skip("CSVNORM_REDIS_ADDR not set")
	}

	ctx := context.Background()
	p := NewRedisPublisher(Config{Type: "redis", Address: addr, Name: "csvnorm-test", TTL: 60})
	defer p.Close()

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, p.Publish(ctx, NewResult("users", now, now.Add(time.Second), 5, 5, 0, nil)))

	last, err := p.Last(ctx, "csvnorm-test")
	require.NoError(t, err)
	assert.Equal(t, "csvnorm-test", last.ResultName)
	assert.Equal(t, int64(5), last.RecordsWritten)
}
