// Package messaging publishes provisioning events over SNS and manages
// which member accounts may publish to the shared topics.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/anirudhbiyani/cross-account-manager/pkg/crossaccount"
)

// PermissionLabel identifies the topic policy statement holding the
// member-account publish grant.
const PermissionLabel = "CAM"

// SNSAPI abstracts the SNS operations the publisher consumes.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	AddPermission(ctx context.Context, in *sns.AddPermissionInput, optFns ...func(*sns.Options)) (*sns.AddPermissionOutput, error)
	RemovePermission(ctx context.Context, in *sns.RemovePermissionInput, optFns ...func(*sns.Options)) (*sns.RemovePermissionOutput, error)
}

// Publisher implements crossaccount.Publisher on SNS.
type Publisher struct {
	client SNSAPI
	logger *slog.Logger
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger.
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = l }
}

// NewPublisher creates a Publisher.
func NewPublisher(client SNSAPI, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish implements crossaccount.Publisher. The payload is sent as its
// JSON encoding.
func (p *Publisher) Publish(ctx context.Context, topicARN string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return crossaccount.ErrInternal("encode message").WithCause(err).WithResource("topic", topicARN)
	}
	if _, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(string(body)),
	}); err != nil {
		return crossaccount.ErrRemote("publish message").WithCause(err).WithResource("topic", topicARN)
	}
	p.logger.Debug("published message", "topic", topicARN)
	return nil
}

// ReplacePublishPermission implements crossaccount.Publisher. The old
// grant is removed before the replacement is added, so concurrent
// publishers in member accounts may be briefly denied between the two
// calls. An empty id list leaves the topic with no member grant.
func (p *Publisher) ReplacePublishPermission(ctx context.Context, topicARN string, accountIDs []string) error {
	// The label may not exist yet; removal failure is not actionable.
	if _, err := p.client.RemovePermission(ctx, &sns.RemovePermissionInput{
		TopicArn: aws.String(topicARN),
		Label:    aws.String(PermissionLabel),
	}); err != nil {
		p.logger.Debug("no existing publish permission removed", "topic", topicARN, "error", err)
	}

	if len(accountIDs) == 0 {
		p.logger.Info("cleared publish permission", "topic", topicARN)
		return nil
	}
	if _, err := p.client.AddPermission(ctx, &sns.AddPermissionInput{
		TopicArn:     aws.String(topicARN),
		Label:        aws.String(PermissionLabel),
		AWSAccountId: accountIDs,
		ActionName:   []string{"Publish"},
	}); err != nil {
		return crossaccount.ErrRemote("grant publish permission").WithCause(err).WithResource("topic", topicARN)
	}
	p.logger.Info("replaced publish permission", "topic", topicARN, "accounts", len(accountIDs))
	return nil
}
