// Package telemetry emits CloudWatch metrics for automation runs.
package telemetry

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"planswitch/internal/types"
)

// Metric and dimension names.
const (
	MetricRunOutcome  = "RunOutcome"
	MetricRunDuration = "RunDuration"

	DimTrigger = "Trigger"
	DimResult  = "Result"
)

// CloudWatchAPI is the subset of the CloudWatch SDK client used here.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// RunMetrics implements types.LogSink. Each Append publishes a RunOutcome
// count and a RunDuration sample in one PutMetricData call.
type RunMetrics struct {
	client    CloudWatchAPI
	namespace string
}

// NewRunMetrics creates a sink publishing into namespace.
func NewRunMetrics(client CloudWatchAPI, namespace string) *RunMetrics {
	return &RunMetrics{client: client, namespace: namespace}
}

// Append publishes RunOutcome and RunDuration for one run in a single
// PutMetricData call.
func (m *RunMetrics) Append(ctx context.Context, result types.RunResult, contextLabel string) error {
	outcome := "Failure"
	if result.Success {
		outcome = "Success"
	}
	dims := []cwTypes.Dimension{
		{Name: aws.String(DimTrigger), Value: aws.String(contextLabel)},
		{Name: aws.String(DimResult), Value: aws.String(outcome)},
	}
	at := result.Timestamp.UTC()

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwTypes.MetricDatum{
			{
				MetricName: aws.String(MetricRunOutcome),
				Value:      aws.Float64(1),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
				Timestamp:  aws.Time(at),
			},
			{
				MetricName: aws.String(MetricRunDuration),
				Value:      aws.Float64(float64(result.Duration.Milliseconds())),
				Unit:       cwTypes.StandardUnitMilliseconds,
				Dimensions: dims,
				Timestamp:  aws.Time(at),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish run metrics: %w", err)
	}
	return nil
}
