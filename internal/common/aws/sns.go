// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// EventAnalysisCompleted is the eventType attribute on completion messages.
const EventAnalysisCompleted = "analysis.completed"

// SNSAPI is the part of the SNS client the notifier needs.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client   SNSAPI
	topicARN string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewSNSClientWithAPI(sns.NewFromConfig(cfg), topicARN), nil
}

// NewSNSClientWithAPI wraps an existing client, typically a fake in tests.
func NewSNSClientWithAPI(api SNSAPI, topicARN string) *SNSClient {
	return &SNSClient{client: api, topicARN: topicARN}
}

// AnalysisEvent is the JSON body published when an analysis finishes.
type AnalysisEvent struct {
	Event          string    `json:"event"`
	AnalysisID     int64     `json:"analysisId"`
	ProjectID      int64     `json:"projectId"`
	DocumentID     int64     `json:"documentId"`
	ConversationID *int64    `json:"conversationId,omitempty"`
	Status         string    `json:"status"`
	Agents         []string  `json:"agents,omitempty"`
	ArtifactPath   string    `json:"artifactPath,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// PublishAnalysisCompleted sends ev to the configured topic and returns the
// SNS message id.
func (s *SNSClient) PublishAnalysisCompleted(ctx context.Context, ev AnalysisEvent) (string, error) {
	if ev.Event == "" {
		ev.Event = EventAnalysisCompleted
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode analysis event: %w", err)
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(s.topicARN),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: awssdk.String("String"), StringValue: awssdk.String(ev.Event)},
			"status":    {DataType: awssdk.String("String"), StringValue: awssdk.String(ev.Status)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", ev.Event, err)
	}
	return awssdk.ToString(out.MessageId), nil
}
