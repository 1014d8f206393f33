//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/adapter/kafka"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/adapter/yandex"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/dispatch"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/geocache"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/observability"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testRankingsTopic = "test-order-rankings"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := kafkatc.Run(ctx, "confluentinc/confluent-local:7.5.0", kafkatc.WithClusterID("dispatch-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// fakeYandex answers geocode requests from a fixed table of "lon lat" positions.
func fakeYandex(t *testing.T, positions map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		members := []any{}
		if pos, ok := positions[r.URL.Query().Get("geocode")]; ok {
			members = append(members, map[string]any{
				"GeoObject": map[string]any{"Point": map[string]any{"pos": pos}},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"GeoObjectCollection": map[string]any{"featureMember": members},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type staticSource struct {
	snap domain.Snapshot
}

func (s staticSource) LoadSnapshot(_ context.Context) (domain.Snapshot, error) {
	return s.snap, nil
}

type publishedRanking struct {
	Result  domain.RankedResult
	Key     string
	Headers map[string]string
}

func readRanking(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedRanking {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from rankings topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var result domain.RankedResult
	require.NoError(t, json.Unmarshal(msg.Value, &result), "unmarshal ranking")

	return publishedRanking{Result: result, Key: string(msg.Key), Headers: headers}
}

// TestDispatchPipeline_PublishesRankings runs one full cycle: snapshot,
// geocoding through the cache, ranking and publishing to a real broker.
func TestDispatchPipeline_PublishesRankings(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testRankingsTopic)

	geoSrv := fakeYandex(t, map[string]string{
		"Customer":   "37.60 55.70",
		"Restaurant": "37.62 55.75",
	})

	metrics := observability.NewMetricsForTesting()
	logger := discardLogger()
	client := yandex.NewClient("test-key", geoSrv.URL, 5*time.Second, metrics, logger)
	cache := geocache.New(geocache.NewMemoryStore(), client, logger, metrics, geocache.Options{})
	orch := dispatch.New(cache, logger, metrics)

	source := staticSource{snap: domain.Snapshot{
		Orders: []domain.OrderForRanking{
			{OrderID: 1, CustomerAddress: "Customer", LineItems: []domain.OrderLineItem{{ProductID: 10, Quantity: 2}}},
			{OrderID: 2, CustomerAddress: "Nowhere", LineItems: []domain.OrderLineItem{{ProductID: 10, Quantity: 1}}},
		},
		Restaurants:  []domain.RestaurantCandidate{{RestaurantID: 100, Name: "Pizza Place", Address: "Restaurant"}},
		Capabilities: []domain.MenuCapability{{RestaurantID: 100, ProductID: 10, Available: true}},
	}}

	writer := kafka.NewWriter([]string{broker}, testRankingsTopic, logger)
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(source, orch, writer, logger, metrics, time.Hour)
	require.NoError(t, p.RunOnce(ctx))
	require.NoError(t, p.CheckReadiness(ctx))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testRankingsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readRanking(ctx, t, consumer)
	second := readRanking(ctx, t, consumer)

	assert.Equal(t, "1", first.Key)
	assert.Equal(t, "true", first.Headers[kafka.HeaderDistancesAvailable])
	require.Len(t, first.Result.Ranking, 1)
	assert.Equal(t, int64(100), first.Result.Ranking[0].RestaurantID)
	assert.InDelta(t, 5.70, first.Result.Ranking[0].DistanceKm, 0.01)
	_, err := time.Parse(time.RFC3339, first.Headers[kafka.HeaderComputedAt])
	assert.NoError(t, err, "computed_at should be valid RFC3339")

	assert.Equal(t, "2", second.Key)
	assert.Equal(t, "false", second.Headers[kafka.HeaderDistancesAvailable])
	assert.Empty(t, second.Result.Ranking)
	assert.Equal(t, []int64{100}, second.Result.Capable)

	assert.NotEmpty(t, first.Headers[kafka.HeaderBatchID])
	assert.Equal(t, first.Headers[kafka.HeaderBatchID], second.Headers[kafka.HeaderBatchID])
}
