package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

const slackTimeout = 10 * time.Second

// SecretsAPI is the subset of the Secrets Manager client used to resolve
// webhook URLs.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SlackSink posts the report to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
	secretARN  string
	channel    string
	username   string
	client     *http.Client
	secrets    SecretsAPI

	mu       sync.Mutex
	resolved string
}

// SlackSinkOption configures a SlackSink.
type SlackSinkOption func(*SlackSink)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) SlackSinkOption {
	return func(s *SlackSink) { s.client = c }
}

// WithSecretsClient sets a custom Secrets Manager client (useful for testing).
func WithSecretsClient(c SecretsAPI) SlackSinkOption {
	return func(s *SlackSink) { s.secrets = c }
}

// NewSlackSink creates a slack webhook sink. The webhook URL is either given
// directly or referenced through a Secrets Manager ARN resolved on first use.
func NewSlackSink(cfg types.SinkConfig, opts ...SlackSinkOption) (*SlackSink, error) {
	if cfg.WebhookURL == "" && cfg.WebhookSecretARN == "" {
		return nil, fmt.Errorf("slack webhook URL or secret ARN required")
	}
	s := &SlackSink{
		webhookURL: cfg.WebhookURL,
		secretARN:  cfg.WebhookSecretARN,
		channel:    cfg.Channel,
		username:   cfg.Username,
		client:     &http.Client{Timeout: slackTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *SlackSink) Name() string { return "slack" }

type slackMessage struct {
	Text     string `json:"text"`
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
}

// Send posts the message to the webhook.
func (s *SlackSink) Send(ctx context.Context, message string) error {
	url, err := s.resolveWebhookURL(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(slackMessage{
		Text:     message,
		Channel:  s.channel,
		Username: s.username,
	})
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack POST failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *SlackSink) resolveWebhookURL(ctx context.Context) (string, error) {
	if s.webhookURL != "" {
		return s.webhookURL, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved != "" {
		return s.resolved, nil
	}

	if s.secrets == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("loading AWS config: %w", err)
		}
		s.secrets = secretsmanager.NewFromConfig(awsCfg)
	}

	out, err := s.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretARN),
	})
	if err != nil {
		return "", fmt.Errorf("resolving webhook secret: %w", err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", fmt.Errorf("webhook secret %s is empty", s.secretARN)
	}
	s.resolved = strings.TrimSpace(*out.SecretString)
	return s.resolved, nil
}
