package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	result := domain.RankedResult{
		OrderID: 42,
		Ranking: []domain.RankedRestaurant{
			{RestaurantID: 100, Name: "Pizza Place", DistanceKm: 5.7},
		},
		DistancesAvailable: true,
		Capable:            []int64{100},
		ComputedAt:         now,
	}

	msg, err := serializeToMessage("batch-1", result)
	require.NoError(t, err)

	assert.Equal(t, []byte("42"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, HeaderBatchID, msg.Headers[0].Key)
	assert.Equal(t, []byte("batch-1"), msg.Headers[0].Value)
	assert.Equal(t, HeaderDistancesAvailable, msg.Headers[1].Key)
	assert.Equal(t, []byte("true"), msg.Headers[1].Value)
	assert.Equal(t, HeaderComputedAt, msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var decoded domain.RankedResult
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, result.OrderID, decoded.OrderID)
	assert.Equal(t, result.Ranking, decoded.Ranking)
	assert.Equal(t, result.Capable, decoded.Capable)
	assert.True(t, decoded.ComputedAt.Equal(now))
}

func TestSerializeToMessage_UnroutableKeepsEmptyRanking(t *testing.T) {
	result := domain.NewRankedResult(7, nil, nil, true)

	msg, err := serializeToMessage("batch-2", result)
	require.NoError(t, err)

	assert.Equal(t, []byte("7"), msg.Key)
	assert.Contains(t, string(msg.Value), `"ranking":[]`)
	assert.Contains(t, string(msg.Value), `"capable":[]`)
}

func TestSerializeToMessage_NoDistances(t *testing.T) {
	result := domain.NewRankedResult(8, []domain.RestaurantCandidate{{RestaurantID: 1}}, nil, false)

	msg, err := serializeToMessage("batch-3", result)
	require.NoError(t, err)
	assert.Equal(t, []byte("false"), msg.Headers[1].Value)
}

func TestWriter_LoadBatch_EmptyIsNoop(t *testing.T) {
	// No broker is listening; an empty batch must return before dialing.
	w := NewWriter([]string{"127.0.0.1:1"}, "order-rankings", slog.Default())
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.LoadBatch(context.Background(), "batch-4", nil))
}
