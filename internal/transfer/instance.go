// Package transfer provisions the transient EC2-backed SFTP/FTP endpoint that
// the file-transfer example DAGs read from. One instance is launched per
// suite execution and terminated when the suite is done, whatever the outcome.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/flightcheck-systems/flightcheck/internal/metrics"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// EC2API is the subset of the EC2 client used by Manager.
type EC2API interface {
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// Manager owns the lifecycle of one transient transfer instance.
type Manager struct {
	client       EC2API
	cfg          types.TransferConfig
	launchWait   time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithEC2Client sets a custom EC2 client (useful for testing).
func WithEC2Client(c EC2API) Option {
	return func(m *Manager) { m.client = c }
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a manager for the configured AMI and security group.
func New(cfg types.TransferConfig, opts ...Option) (*Manager, error) {
	if cfg.AMIID == "" {
		return nil, fmt.Errorf("transfer: amiId is required")
	}
	if cfg.SecurityGroupID == "" {
		return nil, fmt.Errorf("transfer: securityGroupId is required")
	}

	m := &Manager{
		cfg:          cfg,
		launchWait:   2 * time.Minute,
		pollInterval: 30 * time.Second,
		logger:       slog.Default(),
	}
	if cfg.LaunchWait != "" {
		d, err := time.ParseDuration(cfg.LaunchWait)
		if err != nil {
			return nil, fmt.Errorf("transfer: invalid launchWait: %w", err)
		}
		m.launchWait = d
	}
	if cfg.PollInterval != "" {
		d, err := time.ParseDuration(cfg.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("transfer: invalid pollInterval: %w", err)
		}
		m.pollInterval = d
	}
	for _, o := range opts {
		o(m)
	}
	if m.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("transfer: loading AWS config: %w", err)
		}
		m.client = ec2.NewFromConfig(awsCfg)
	}
	return m, nil
}

// Launch starts the instance and returns its ID.
func (m *Manager) Launch(ctx context.Context) (string, error) {
	instanceType := ec2types.InstanceType(m.cfg.InstanceType)
	if m.cfg.InstanceType == "" {
		instanceType = ec2types.InstanceTypeT2Micro
	}

	out, err := m.client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:          aws.String(m.cfg.AMIID),
		InstanceType:     instanceType,
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SecurityGroupIds: []string{m.cfg.SecurityGroupID},
	})
	if err != nil {
		return "", fmt.Errorf("launching transfer instance: %w", err)
	}
	if len(out.Instances) == 0 || out.Instances[0].InstanceId == nil {
		return "", fmt.Errorf("launch returned no instance")
	}

	id := *out.Instances[0].InstanceId
	metrics.InstancesLaunched.Add(1)
	m.logger.Info("transfer instance launched", "instanceId", id)
	return id, nil
}

// WaitRunning blocks until the instance reports running, then returns its
// public IP. A fresh instance is not immediately describable, hence the
// settle wait before the first poll.
func (m *Manager) WaitRunning(ctx context.Context, instanceID string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.launchWait):
	}

	for {
		state, ip, err := m.status(ctx, instanceID)
		if err != nil {
			return "", err
		}
		if state == ec2types.InstanceStateNameRunning {
			if ip == "" {
				return "", fmt.Errorf("instance %s is running without a public IP", instanceID)
			}
			return ip, nil
		}

		m.logger.Info("waiting for transfer instance", "instanceId", instanceID, "state", state)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}

// Terminate stops the instance. Called regardless of how the suite ended.
func (m *Manager) Terminate(ctx context.Context, instanceID string) error {
	_, err := m.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("terminating instance %s: %w", instanceID, err)
	}
	metrics.InstancesTerminated.Add(1)
	m.logger.Info("transfer instance terminated", "instanceId", instanceID)
	return nil
}

func (m *Manager) status(ctx context.Context, instanceID string) (ec2types.InstanceStateName, string, error) {
	out, err := m.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", "", fmt.Errorf("describing instance %s: %w", instanceID, err)
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return "", "", fmt.Errorf("instance %s not found", instanceID)
	}

	inst := out.Reservations[0].Instances[0]
	var state ec2types.InstanceStateName
	if inst.State != nil {
		state = inst.State.Name
	}
	return state, aws.ToString(inst.PublicIpAddress), nil
}
