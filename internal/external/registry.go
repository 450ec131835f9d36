// Package external builds the AWS-backed outcome sinks from configuration.
package external

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"planswitch/internal/config"
	"planswitch/internal/queue"
	"planswitch/internal/telemetry"
	"planswitch/internal/types"
)

// Sink names used in logs and by the stubs.
const (
	SinkResults = "results_queue"
	SinkMetrics = "run_metrics"
)

// SinkRegistry holds the optional outcome sinks. A nil field means the sink
// is disabled by configuration.
type SinkRegistry struct {
	Results types.LogSink
	Metrics types.LogSink
}

// Sinks returns the enabled sinks.
func (r *SinkRegistry) Sinks() []types.LogSink {
	var out []types.LogSink
	if r.Results != nil {
		out = append(out, r.Results)
	}
	if r.Metrics != nil {
		out = append(out, r.Metrics)
	}
	return out
}

// RegistryOption is a functional option for configuring a SinkRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	sqsClient queue.SQSSender
	cwClient  telemetry.CloudWatchAPI
}

// WithSQSClient injects the SQS client instead of building one from the
// AWS default configuration.
func WithSQSClient(c queue.SQSSender) RegistryOption {
	return func(rc *registryConfig) { rc.sqsClient = c }
}

// WithCloudWatchClient injects the CloudWatch client.
func WithCloudWatchClient(c telemetry.CloudWatchAPI) RegistryOption {
	return func(rc *registryConfig) { rc.cwClient = c }
}

// NewSinkRegistry initializes the outcome sinks. With APP_ENV=local every
// enabled sink is a StubSink. Otherwise the real SQS and CloudWatch sinks are
// built, loading the AWS default configuration only if a client was not
// injected.
func NewSinkRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...RegistryOption) (*SinkRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rc := &registryConfig{}
	for _, opt := range opts {
		opt(rc)
	}

	wantResults := cfg.AWS.ResultsQueueURL != ""
	wantMetrics := cfg.Observability.EnableMetrics

	if cfg.IsLocal() {
		logger.Info("initializing outcome sinks in STUB mode", "environment", cfg.Environment)
		stubLogger := logger.With("mode", "stub")
		reg := &SinkRegistry{}
		if wantResults {
			reg.Results = NewStubSink(SinkResults, stubLogger)
		}
		if wantMetrics {
			reg.Metrics = NewStubSink(SinkMetrics, stubLogger)
		}
		return reg, nil
	}

	logger.Info("initializing outcome sinks in PRODUCTION mode",
		"environment", cfg.Environment,
		"results_queue", wantResults,
		"metrics", wantMetrics,
	)

	needSQS := wantResults && rc.sqsClient == nil
	needCW := wantMetrics && rc.cwClient == nil
	if needSQS || needCW {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		endpoint := cfg.AWS.EndpointURL
		if needSQS {
			rc.sqsClient = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
				if endpoint != "" {
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
		}
		if needCW {
			rc.cwClient = cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
				if endpoint != "" {
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
		}
	}

	reg := &SinkRegistry{}
	if wantResults {
		reg.Results = queue.NewResultPublisher(rc.sqsClient, cfg.AWS.ResultsQueueURL, logger.With("sink", SinkResults))
	}
	if wantMetrics {
		reg.Metrics = telemetry.NewRunMetrics(rc.cwClient, cfg.Observability.MetricNamespace)
	}
	return reg, nil
}
