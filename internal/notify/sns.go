package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

const defaultSNSSubject = "flightcheck suite report"

// SNSAPI is the subset of the SNS client used by SNSSink.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink publishes the report to an SNS topic.
type SNSSink struct {
	client   SNSAPI
	topicARN string
	subject  string
}

// SNSSinkOption configures an SNSSink.
type SNSSinkOption func(*SNSSink)

// WithSNSClient sets a custom SNS client (useful for testing).
func WithSNSClient(c SNSAPI) SNSSinkOption {
	return func(s *SNSSink) { s.client = c }
}

// NewSNSSink creates a new SNS report sink.
func NewSNSSink(cfg types.SinkConfig, opts ...SNSSinkOption) (*SNSSink, error) {
	if cfg.TopicARN == "" {
		return nil, fmt.Errorf("SNS topic ARN required")
	}
	s := &SNSSink{topicARN: cfg.TopicARN, subject: cfg.Subject}
	if s.subject == "" {
		s.subject = defaultSNSSubject
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = sns.NewFromConfig(awsCfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *SNSSink) Name() string { return "sns" }

// Send publishes the report text to the configured SNS topic.
func (s *SNSSink) Send(ctx context.Context, message string) error {
	subject := s.subject
	if len(subject) > 100 {
		subject = subject[:100]
	}

	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("publishing to SNS: %w", err)
	}
	return nil
}
