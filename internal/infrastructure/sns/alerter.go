package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-otp-ledger/internal/config"
)

// Alert is an operational event that needs a human.
type Alert struct {
	Kind     string    `json:"kind"`
	Subject  string    `json:"subject_email,omitempty"`
	Error    string    `json:"error"`
	Occurred time.Time `json:"occurred_at"`
}

// Alerter publishes operational alerts.
type Alerter interface {
	Alert(ctx context.Context, a Alert) error
}

// PublishAPI is the subset of *sns.Client the alerter uses.
type PublishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type alerter struct {
	client   PublishAPI
	topicARN string
}

// NewAlerter returns an Alerter publishing to cfg.AlertTopicARN.
func NewAlerter(ctx context.Context, cfg *config.Config) (Alerter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SNSRegion))
	if err != nil {
		return nil, err
	}
	opts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) { o.BaseEndpoint = aws.String(cfg.AWSEndpointURL) })
	}
	return newAlerter(sns.NewFromConfig(awsCfg, opts...), cfg.AlertTopicARN), nil
}

func newAlerter(client PublishAPI, topicARN string) *alerter {
	return &alerter{client: client, topicARN: topicARN}
}

func (a *alerter) Alert(ctx context.Context, al Alert) error {
	body, err := json.Marshal(al)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	_, err = a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String("otp-ledger: " + al.Kind),
		Message:  aws.String(string(body)),
	})
	return err
}

// Nop discards alerts. Used when no topic is configured.
type Nop struct{}

func (Nop) Alert(context.Context, Alert) error { return nil }
