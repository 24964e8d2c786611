package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-hex-etl/internal/config"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	prob := 0.42
	record := domain.HexRecord{
		HexID:           "8426cb3ffffffff",
		Year:            2024,
		Month:           4,
		Day:             26,
		FireCount:       3,
		Burned:          true,
		FireProbability: &prob,
	}

	msg, err := serializeToMessage(record, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("8426cb3ffffffff"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "date", msg.Headers[0].Key)
	assert.Equal(t, []byte("2024-04-26"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "8426cb3ffffffff", body["hex_id"])
	assert.Equal(t, "2024-04-26", body["date"])
	assert.Equal(t, 0.42, body["fire_prob"])
	assert.Equal(t, true, body["burned"])
	assert.NotContains(t, body, "prcp")
}

func TestWriter_PublishBatch_Empty(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaTopic: "hexes"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	require.NoError(t, w.PublishBatch(context.Background(), nil))
}
