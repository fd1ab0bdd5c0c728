package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-proximity-service/internal/catalog"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/observability"
	"github.com/couchcryptid/hazard-proximity-service/internal/pipeline"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	i := int(m.index.Add(1) - 1)
	if m.err != nil && i == 0 {
		return nil, m.err
	}
	if m.err != nil {
		i--
	}
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

// mockTransformer emits every event except those whose value is "skip".
type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, bool, error) {
	if m.err != nil {
		return domain.OutputEvent{}, false, m.err
	}
	if string(raw.Value) == "skip" {
		return domain.OutputEvent{}, false, nil
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, true, nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.OutputEvent
	failures int
	calls    int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) snapshot() []domain.OutputEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutputEvent(nil), m.loaded...)
}

type commitLog struct {
	mu      sync.Mutex
	offsets []int64
}

func (c *commitLog) commitFor(offset int64) func(context.Context) error {
	return func(context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.offsets = append(c.offsets, offset)
		return nil
	}
}

func (c *commitLog) snapshot() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.offsets...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawEvent(offset int64, value string, commits *commitLog) domain.RawEvent {
	raw := domain.RawEvent{
		Key:    []byte("driver-1"),
		Value:  []byte(value),
		Topic:  "driver-locations",
		Offset: offset,
	}
	if commits != nil {
		raw.Commit = commits.commitFor(offset)
	}
	return raw
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- pipeline ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		rawEvent(1, "a", commits),
		rawEvent(2, "b", commits),
	}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 10)
	runFor(t, p, 300*time.Millisecond)

	loaded := ldr.snapshot()
	require.Len(t, loaded, 2)
	assert.Equal(t, []byte("a"), loaded[0].Value)
	assert.Equal(t, []int64{1, 2}, commits.snapshot())
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesProduced), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformErrorCommitsAndSkips(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawEvent(7, "bad", commits)}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, discardLogger(), metrics, 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.snapshot())
	assert.Equal(t, []int64{7}, commits.snapshot())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_NonEmittingEventsAreCommitted(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		rawEvent(1, "skip", commits),
		rawEvent(2, "alert", commits),
		rawEvent(3, "skip", commits),
	}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	loaded := ldr.snapshot()
	require.Len(t, loaded, 1)
	assert.Equal(t, []byte("alert"), loaded[0].Value)
	assert.Equal(t, []int64{1, 2, 3}, commits.snapshot())
}

func TestPipeline_Run_OnlySkippedEventsSkipsLoader(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawEvent(4, "skip", commits)}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Zero(t, ldr.calls)
	assert.Equal(t, []int64{4}, commits.snapshot())
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadFailureLeavesOffsetsUncommitted(t *testing.T) {
	commits := &commitLog{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawEvent(9, "a", commits)}}}
	ldr := &mockLoader{failures: 100}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.snapshot())
	assert.Empty(t, commits.snapshot())
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RecoversAfterExtractError(t *testing.T) {
	ext := &mockExtractor{
		err:     errors.New("leader not available"),
		batches: [][]domain.RawEvent{{rawEvent(1, "a", nil)}},
	}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, time.Second)

	assert.Len(t, ldr.snapshot(), 1)
}

func TestPipeline_Run_UnloadedCatalogRetriesWithoutCommitting(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	cat := catalog.New(catalog.StaticSource{}, nil, false, metrics, discardLogger())
	svc := warning.NewService(cat, domain.NewGate(500), nil, nil, t.TempDir(), metrics, discardLogger())

	commits := &commitLog{}
	raw := locationEvent(t, "driver-3", map[string]any{"lat": 40.7129, "lon": -74.0061})
	raw.Offset = 1
	raw.Commit = commits.commitFor(1)
	ldr := &mockLoader{}

	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}}, pipeline.NewTransformer(svc, discardLogger()), ldr, discardLogger(), metrics, 10)
	runFor(t, p, 500*time.Millisecond)

	assert.Empty(t, ldr.snapshot())
	assert.Empty(t, commits.snapshot())
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.TransformErrors), 0)
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ProcessesHeldMessageOnceCatalogLoads(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	cat := catalog.New(catalog.StaticSource{
		{Category: domain.CategorySchool, Points: []domain.HazardPoint{
			domain.NewHazardPoint("PS 1", "8 Henry St", 40.7128, -74.0060),
		}},
	}, nil, false, metrics, discardLogger())
	svc := warning.NewService(cat, domain.NewGate(500), nil, nil, t.TempDir(), metrics, discardLogger())

	commits := &commitLog{}
	raw := locationEvent(t, "driver-3", map[string]any{"lat": 40.7129, "lon": -74.0061})
	raw.Offset = 1
	raw.Commit = commits.commitFor(1)
	ldr := &mockLoader{}

	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}}, pipeline.NewTransformer(svc, discardLogger()), ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go func() {
		time.Sleep(300 * time.Millisecond)
		assert.NoError(t, cat.Load(ctx))
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	require.Eventually(t, func() bool { return len(ldr.snapshot()) == 1 }, 2500*time.Millisecond, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, []byte("driver-3"), ldr.snapshot()[0].Key)
	assert.Equal(t, []int64{1}, commits.snapshot())
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.TransformErrors), 0)
}

// --- transformer ---

func newAlertTransformer(t *testing.T, collections []domain.Collection) *pipeline.AlertTransformer {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	cat := catalog.New(catalog.StaticSource(collections), nil, false, metrics, discardLogger())
	require.NoError(t, cat.Load(context.Background()))
	svc := warning.NewService(cat, domain.NewGate(500), nil, nil, t.TempDir(), metrics, discardLogger())
	return pipeline.NewTransformer(svc, discardLogger())
}

func locationEvent(t *testing.T, key string, v map[string]any) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return domain.RawEvent{
		Key:       []byte(key),
		Value:     data,
		Timestamp: time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestAlertTransformer_Actionable(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, time.October, 15, 12, 0, 5, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	tfm := newAlertTransformer(t, []domain.Collection{
		{Category: domain.CategorySchool, Points: []domain.HazardPoint{
			domain.NewHazardPoint("PS 1", "8 Henry St", 40.7128, -74.0060),
		}},
	})

	raw := locationEvent(t, "driver-9", map[string]any{"lat": 40.7129, "lon": -74.0061})
	out, emit, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, emit)

	assert.Equal(t, []byte("driver-9"), out.Key)
	assert.Equal(t, map[string]string{
		"category":  domain.CategorySchool,
		"issued_at": "2026-10-15T12:00:05Z",
	}, out.Headers)

	var alert domain.Alert
	require.NoError(t, json.Unmarshal(out.Value, &alert))
	assert.NotEmpty(t, alert.ID)

	type summary struct {
		DriverID string
		Name     string
		Message  string
		DeepLink string
		Reported time.Time
	}
	want := summary{
		DriverID: "driver-9",
		Name:     "PS 1",
		Message:  "Caution! You are approaching a school at 8 Henry St, operated by PS 1.",
		DeepLink: "https://waze.com/ul?ll=40.7128,-74.006&navigate=yes",
		Reported: raw.Timestamp,
	}
	got := summary{
		DriverID: alert.DriverID,
		Name:     alert.Hazard.Name,
		Message:  alert.Message,
		DeepLink: alert.DeepLink,
		Reported: alert.ReportedAt,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("alert mismatch (-want +got):\n%s", diff)
	}
}

func TestAlertTransformer_DistantIsNotEmitted(t *testing.T) {
	tfm := newAlertTransformer(t, []domain.Collection{
		{Category: domain.CategorySchool, Points: []domain.HazardPoint{
			domain.NewHazardPoint("PS 1", "8 Henry St", 40.7128, -74.0060),
		}},
	})

	out, emit, err := tfm.Transform(context.Background(), locationEvent(t, "d", map[string]any{"lat": 40.80, "lon": -73.95}))
	require.NoError(t, err)
	assert.False(t, emit)
	assert.Empty(t, out.Value)
}

func TestAlertTransformer_NoDataIsNotEmitted(t *testing.T) {
	tfm := newAlertTransformer(t, []domain.Collection{{Category: domain.CategoryPothole}})

	_, emit, err := tfm.Transform(context.Background(), locationEvent(t, "d", map[string]any{"lat": 40.7, "lon": -74}))
	require.NoError(t, err)
	assert.False(t, emit)
}

func TestAlertTransformer_InvalidInput(t *testing.T) {
	tfm := newAlertTransformer(t, nil)

	tests := []struct {
		name string
		raw  domain.RawEvent
	}{
		{"not json", domain.RawEvent{Value: []byte("not json")}},
		{"missing lon", locationEvent(t, "d", map[string]any{"lat": 40.7})},
		{"latitude out of range", locationEvent(t, "d", map[string]any{"lat": 91, "lon": -74})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, emit, err := tfm.Transform(context.Background(), tt.raw)
			require.Error(t, err)
			assert.False(t, emit)
		})
	}
}
