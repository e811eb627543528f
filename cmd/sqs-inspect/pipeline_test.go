package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqsinspect/internal/config"
	"sqsinspect/internal/metrics"
	"sqsinspect/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(dest string) *config.Config {
	return &config.Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "text",
		AWS:         config.AWSConfig{Region: "eu-north-1"},
		Queue: config.QueueConfig{
			URL:                    testQueueURL,
			MessagesPerReceive:     10,
			VisibilityFloorSeconds: 15,
			MaxStalledReceives:     2,
			Concurrency:            1,
		},
		Output: config.OutputConfig{Destination: dest},
	}
}

type outputRecord struct {
	MessageID     string          `json:"messageId"`
	SentTimeEpoch int64           `json:"sentTimeEpoch"`
	Body          json.RawMessage `json:"body"`
}

func readOutput(t *testing.T, path string) []outputRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []outputRecord
	require.NoError(t, json.Unmarshal(data, &records))
	return records
}

func TestExecute_WritesNewestFirst(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.json")
	q := newFakeQueue(3,
		message("a", `{"n":1}`, 1_000),
		message("b", `not json`, 3_000),
		message("c", `{"n":3}`, 2_000),
	)

	err := execute(context.Background(), testConfig(dest), awsClients{SQS: q}, discardLogger())
	require.NoError(t, err)

	records := readOutput(t, dest)
	require.Len(t, records, 3)
	assert.Equal(t, "b", records[0].MessageID)
	assert.Equal(t, "c", records[1].MessageID)
	assert.Equal(t, "a", records[2].MessageID)
	assert.JSONEq(t, `"not json"`, string(records[0].Body))
	assert.JSONEq(t, `{"n":3}`, string(records[1].Body))

	require.NotEmpty(t, q.visibility)
	assert.Equal(t, int32(15), q.visibility[0], "derived visibility should respect the floor")
}

func TestExecute_StalledDrainStillWrites(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.json")
	q := newFakeQueue(5, message("a", `{}`, 1_000))

	err := execute(context.Background(), testConfig(dest), awsClients{SQS: q}, discardLogger())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeDrainStalled, types.CodeOf(err))
	assert.Equal(t, types.ExitOK, types.ExitCodeOf(err))

	records := readOutput(t, dest)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].MessageID)
}

func TestExecute_ReceiveFailureWritesNothing(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.json")
	q := newFakeQueue(2, message("a", `{}`, 1_000))
	q.receiveErr = errAccessDenied

	err := execute(context.Background(), testConfig(dest), awsClients{SQS: q}, discardLogger())
	require.Error(t, err)
	assert.Equal(t, types.ExitUnavailable, types.ExitCodeOf(err))

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "no output should be written on a hard failure")
}

func TestExecute_EmptyQueueWritesEmptyArray(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.json")
	q := newFakeQueue(0)

	err := execute(context.Background(), testConfig(dest), awsClients{SQS: q}, discardLogger())
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
	assert.Zero(t, q.receives)
}

func TestExecute_S3Destination(t *testing.T) {
	q := newFakeQueue(1, message("a", `{}`, 1_000))
	s3c := &fakeS3{}

	err := execute(context.Background(), testConfig("s3://snapshots/orders.json"), awsClients{SQS: q, S3: s3c}, discardLogger())
	require.NoError(t, err)

	require.Len(t, s3c.puts, 1)
	assert.Equal(t, "snapshots", *s3c.puts[0].Bucket)
	assert.Equal(t, "orders.json", *s3c.puts[0].Key)
}

func TestExecute_VerifyIdentity(t *testing.T) {
	t.Run("success logs the caller", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := testConfig(filepath.Join(t.TempDir(), "out.json"))
		cfg.AWS.VerifyIdentity = true
		stsc := &fakeSTS{}

		err := execute(context.Background(), cfg, awsClients{SQS: newFakeQueue(0), STS: stsc}, slog.New(slog.NewTextHandler(&buf, nil)))
		require.NoError(t, err)
		assert.Equal(t, 1, stsc.calls)
		assert.Contains(t, buf.String(), "account_id=123456789012")
	})

	t.Run("failure stops before the queue is touched", func(t *testing.T) {
		cfg := testConfig(filepath.Join(t.TempDir(), "out.json"))
		cfg.AWS.VerifyIdentity = true
		q := newFakeQueue(1, message("a", `{}`, 1_000))

		err := execute(context.Background(), cfg, awsClients{SQS: q, STS: &fakeSTS{err: errAccessDenied}}, discardLogger())
		require.Error(t, err)
		assert.Equal(t, types.ErrCodeIdentityUnavailable, types.CodeOf(err))
		assert.Zero(t, q.receives)
	})
}

func TestExecute_PublishesRunMetrics(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "out.json"))
	cfg.Observability.MetricNamespace = "SQSInspect"
	cw := &fakeCloudWatch{}

	err := execute(context.Background(), cfg, awsClients{SQS: newFakeQueue(1, message("a", `{}`, 1_000)), CloudWatch: cw}, discardLogger())
	require.NoError(t, err)

	require.Len(t, cw.calls, 1)
	assert.Equal(t, "SQSInspect", *cw.calls[0].Namespace)
}

func TestBuildRecorder(t *testing.T) {
	cw := &fakeCloudWatch{}
	logger := discardLogger()

	assert.IsType(t, metrics.Nop{}, buildRecorder(config.ObservabilityConfig{}, cw, logger))
	assert.IsType(t, &metrics.CloudWatchRecorder{}, buildRecorder(config.ObservabilityConfig{MetricNamespace: "ns"}, cw, logger))
	assert.IsType(t, &metrics.TextfileRecorder{}, buildRecorder(config.ObservabilityConfig{MetricsTextfile: "m.prom"}, cw, logger))

	both := buildRecorder(config.ObservabilityConfig{MetricNamespace: "ns", MetricsTextfile: "m.prom"}, cw, logger)
	multi, ok := both.(metrics.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 2)
}

func TestDrainerConfig(t *testing.T) {
	q := config.QueueConfig{MessagesPerReceive: 5, MaxStalledReceives: 4, MaxReceives: 9, Concurrency: 2}
	dc := drainerConfig(q)
	assert.Equal(t, 5, dc.BatchSize)
	assert.Equal(t, 4, dc.MaxStalledReceives)
	assert.Equal(t, 9, dc.MaxReceives)
	assert.Equal(t, 2, dc.Concurrency)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "queue_url", testQueueURL)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
