// Package queue publishes run outcomes to SQS for downstream consumers
// (alerting, dashboards). The publisher is one of the LogSinks the engine's
// callers fan out to.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"planswitch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// RunEvent is the message body published for each recorded run.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	PlanName   string    `json:"plan_name,omitempty"`
	PlanCode   string    `json:"psid,omitempty"`
	Context    string    `json:"context"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"duration_ms"`
}

// Outcome attribute values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// NewRunEvent converts a result into its published form.
func NewRunEvent(result types.RunResult, contextLabel string) RunEvent {
	return RunEvent{
		RunID:      result.ID,
		Success:    result.Success,
		Message:    result.Message,
		PlanName:   result.PlanName,
		PlanCode:   result.PlanCode,
		Context:    contextLabel,
		Timestamp:  result.Timestamp.UTC(),
		DurationMS: result.Duration.Milliseconds(),
	}
}

// ResultPublisher implements types.LogSink by sending one SQS message per
// Append.
type ResultPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewResultPublisher creates a publisher sending to queueURL.
func NewResultPublisher(client SQSSender, queueURL string, logger *slog.Logger) *ResultPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultPublisher{client: client, queueURL: queueURL, logger: logger}
}

// Append sends one RunEvent message tagged with the trigger label and
// outcome.
func (p *ResultPublisher) Append(ctx context.Context, result types.RunResult, contextLabel string) error {
	event := NewRunEvent(result, contextLabel)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal RunEvent: %w", err)
	}

	outcome := OutcomeFailure
	if result.Success {
		outcome = OutcomeSuccess
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"context": {
				DataType:    aws.String("String"),
				StringValue: aws.String(contextLabel),
			},
			"outcome": {
				DataType:    aws.String("String"),
				StringValue: aws.String(outcome),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("queue: failed to send RunEvent to %s: %w", p.queueURL, err)
	}

	p.logger.DebugContext(ctx, "run event published",
		"queue_url", p.queueURL,
		"run_id", result.ID,
		"outcome", outcome,
		"context", contextLabel,
	)
	return nil
}
