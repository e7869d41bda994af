package main

// StackConfig holds configuration for the flightcheck CDK stack.
type StackConfig struct {
	TableName          string
	MemorySize         float64
	Timeout            float64
	LambdaDistDir      string
	ASLPath            string
	LogRetentionDays   float64
	ScheduleExpression string
	AirflowBaseURL     string
	WebhookSecretARN   string
	DestroyOnDelete    bool
}

// DefaultConfig returns a StackConfig with sensible defaults.
func DefaultConfig() StackConfig {
	return StackConfig{
		TableName:          "flightcheck",
		MemorySize:         256,
		Timeout:            300,
		LambdaDistDir:      "../dist/lambda",
		ASLPath:            "../statemachine.asl.json",
		LogRetentionDays:   7,
		ScheduleExpression: "cron(0 6 * * ? *)",
	}
}
