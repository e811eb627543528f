package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqsinspect/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRun(outcome types.RunOutcome) types.RunMetrics {
	return types.RunMetrics{
		RunID:     "run-1",
		QueueURL:  "https://sqs.eu-north-1.amazonaws.com/123456789012/orders",
		Estimate:  30,
		Drained:   12,
		Receives:  5,
		Malformed: 1,
		Outcome:   outcome,
		Duration:  1500 * time.Millisecond,
	}
}

func datumByName(t *testing.T, data []cwtypes.MetricDatum, name string) cwtypes.MetricDatum {
	t.Helper()
	for _, d := range data {
		if aws.ToString(d.MetricName) == name {
			return d
		}
	}
	t.Fatalf("metric %q not found", name)
	return cwtypes.MetricDatum{}
}

func TestCloudWatchRecorder_RecordRun(t *testing.T) {
	cw := &mockCloudWatchClient{}
	r := NewCloudWatchRecorder(cw, "", discardLogger())

	r.RecordRun(context.Background(), sampleRun(types.OutcomeComplete))

	require.Len(t, cw.calls, 1)
	input := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, aws.ToString(input.Namespace))
	require.Len(t, input.MetricData, 7)

	tests := []struct {
		name  string
		value float64
		unit  cwtypes.StandardUnit
	}{
		{types.MetricQueueDepth, 30, cwtypes.StandardUnitCount},
		{types.MetricMessagesDrained, 12, cwtypes.StandardUnitCount},
		{types.MetricReceiveCalls, 5, cwtypes.StandardUnitCount},
		{types.MetricMalformedBodies, 1, cwtypes.StandardUnitCount},
		{types.MetricDrainStalled, 0, cwtypes.StandardUnitCount},
		{types.MetricDrainDuration, 1500, cwtypes.StandardUnitMilliseconds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := datumByName(t, input.MetricData, tt.name)
			assert.Equal(t, tt.value, aws.ToFloat64(d.Value))
			assert.Equal(t, tt.unit, d.Unit)
			require.Len(t, d.Dimensions, 1)
			assert.Equal(t, types.DimQueueName, aws.ToString(d.Dimensions[0].Name))
			assert.Equal(t, "orders", aws.ToString(d.Dimensions[0].Value))
		})
	}
}

func TestCloudWatchRecorder_RunsByOutcome(t *testing.T) {
	for _, outcome := range []types.RunOutcome{types.OutcomeComplete, types.OutcomeStalled, types.OutcomeFailed} {
		t.Run(string(outcome), func(t *testing.T) {
			cw := &mockCloudWatchClient{}
			r := NewCloudWatchRecorder(cw, "", discardLogger())

			r.RecordRun(context.Background(), sampleRun(outcome))

			require.Len(t, cw.calls, 1)
			d := datumByName(t, cw.calls[0].MetricData, types.MetricRuns)
			assert.Equal(t, 1.0, aws.ToFloat64(d.Value))
			require.Len(t, d.Dimensions, 2)
			assert.Equal(t, types.DimQueueName, aws.ToString(d.Dimensions[0].Name))
			assert.Equal(t, types.DimOutcome, aws.ToString(d.Dimensions[1].Name))
			assert.Equal(t, string(outcome), aws.ToString(d.Dimensions[1].Value))

			depth := datumByName(t, cw.calls[0].MetricData, types.MetricQueueDepth)
			assert.Len(t, depth.Dimensions, 1, "only the run counter carries the outcome")
		})
	}
}

func TestCloudWatchRecorder_StalledRun(t *testing.T) {
	cw := &mockCloudWatchClient{}
	r := NewCloudWatchRecorder(cw, "Ops/SQS", discardLogger())

	r.RecordRun(context.Background(), sampleRun(types.OutcomeStalled))

	require.Len(t, cw.calls, 1)
	assert.Equal(t, "Ops/SQS", aws.ToString(cw.calls[0].Namespace))
	d := datumByName(t, cw.calls[0].MetricData, types.MetricDrainStalled)
	assert.Equal(t, 1.0, aws.ToFloat64(d.Value))
}

func TestCloudWatchRecorder_ErrorIsLoggedNotReturned(t *testing.T) {
	// CloudWatch errors should be logged but not returned (fire-and-forget).
	var buf bytes.Buffer
	cw := &mockCloudWatchClient{returnErr: fmt.Errorf("cloudwatch unavailable")}
	r := NewCloudWatchRecorder(cw, "", slog.New(slog.NewTextHandler(&buf, nil)))

	assert.NotPanics(t, func() {
		r.RecordRun(context.Background(), sampleRun(types.OutcomeFailed))
	})
	assert.Len(t, cw.calls, 1)
	assert.Contains(t, buf.String(), "failed to record run metrics")
	assert.Contains(t, buf.String(), "run_id=run-1")
}
