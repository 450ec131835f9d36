package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planswitch/internal/types"
)

var _ types.LogSink = (*RunMetrics)(nil)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func dimensions(d []cwTypes.Dimension) map[string]string {
	out := make(map[string]string, len(d))
	for _, dim := range d {
		out[aws.ToString(dim.Name)] = aws.ToString(dim.Value)
	}
	return out
}

func TestRunMetrics_Append(t *testing.T) {
	cw := &fakeCloudWatch{}
	m := NewRunMetrics(cw, "PlanSwitch")

	at := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	require.NoError(t, m.Append(context.Background(), types.RunResult{
		Success: true, Timestamp: at, Duration: 1234 * time.Millisecond,
	}, types.LabelScheduled))

	require.Len(t, cw.inputs, 1)
	in := cw.inputs[0]
	assert.Equal(t, "PlanSwitch", aws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 2)

	outcome, duration := in.MetricData[0], in.MetricData[1]
	assert.Equal(t, MetricRunOutcome, aws.ToString(outcome.MetricName))
	assert.Equal(t, 1.0, aws.ToFloat64(outcome.Value))
	assert.Equal(t, cwTypes.StandardUnitCount, outcome.Unit)
	assert.Equal(t, map[string]string{"Trigger": "scheduled", "Result": "Success"}, dimensions(outcome.Dimensions))
	assert.Equal(t, at, aws.ToTime(outcome.Timestamp))

	assert.Equal(t, MetricRunDuration, aws.ToString(duration.MetricName))
	assert.Equal(t, 1234.0, aws.ToFloat64(duration.Value))
	assert.Equal(t, cwTypes.StandardUnitMilliseconds, duration.Unit)
}

func TestRunMetrics_FailureDimension(t *testing.T) {
	cw := &fakeCloudWatch{}
	require.NoError(t, NewRunMetrics(cw, "PlanSwitch").Append(context.Background(), types.RunResult{}, types.LabelManual))
	assert.Equal(t, "Failure", dimensions(cw.inputs[0].MetricData[0].Dimensions)["Result"])
}

func TestRunMetrics_Error(t *testing.T) {
	boom := errors.New("throttled")
	err := NewRunMetrics(&fakeCloudWatch{err: boom}, "PlanSwitch").Append(context.Background(), types.RunResult{}, types.LabelManual)
	assert.ErrorIs(t, err, boom)
}
