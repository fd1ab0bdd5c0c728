//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/hazard-proximity-service/internal/catalog"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/observability"
	"github.com/couchcryptid/hazard-proximity-service/internal/pipeline"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

const dataDir = "../../data"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("hazard-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
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

// sampleTransformer evaluates reports against the sample hazard tables in data/.
func sampleTransformer(ctx context.Context, t *testing.T) *pipeline.AlertTransformer {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	cat := catalog.New(catalog.DirSource{Dir: dataDir, Registry: domain.DefaultRegistry()}, nil, true, metrics, discardLogger())
	require.NoError(t, cat.Load(ctx))
	svc := warning.NewService(cat, domain.NewGate(500), nil, nil, t.TempDir(), metrics, discardLogger())
	return pipeline.NewTransformer(svc, discardLogger())
}

// loadDriverTrace returns the sample location reports as producer messages.
func loadDriverTrace(t *testing.T) []kafkago.Message {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dataDir, "mock", "driver_trace.json"))
	require.NoError(t, err)

	var reports []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &reports))

	msgs := make([]kafkago.Message, 0, len(reports))
	for _, r := range reports {
		var head struct {
			DriverID string `json:"driver_id"`
		}
		require.NoError(t, json.Unmarshal(r, &head))
		msgs = append(msgs, kafkago.Message{Key: []byte(head.DriverID), Value: r})
	}
	return msgs
}

// sinkMessage is an alert read back from the sink topic.
type sinkMessage struct {
	Alert   domain.Alert
	Key     string
	Headers map[string]string
}

func readAlert(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sinkMessage {
	t.Helper()
	msg, err := consumer.ReadMessage(ctx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var alert domain.Alert
	require.NoError(t, json.Unmarshal(msg.Value, &alert), "unmarshal sink message")
	return sinkMessage{Alert: alert, Key: string(msg.Key), Headers: headers}
}
