package main

import (
	"os"
	"path/filepath"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

func NewFlightcheckStack(scope constructs.Construct, id string, cfg StackConfig) awscdk.Stack {
	stack := awscdk.NewStack(scope, &id, nil)

	// History table. The key schema and TTL attribute must match what the
	// history store writes: EXEC#/SUITE# partition keys, a RECORD or
	// timestamped sort key, and an epoch-seconds "ttl" attribute.
	table := awsdynamodb.NewTableV2(stack, jsii.String("Table"), &awsdynamodb.TablePropsV2{
		TableName: jsii.String(cfg.TableName),
		PartitionKey: &awsdynamodb.Attribute{
			Name: jsii.String("PK"),
			Type: awsdynamodb.AttributeType_STRING,
		},
		SortKey: &awsdynamodb.Attribute{
			Name: jsii.String("SK"),
			Type: awsdynamodb.AttributeType_STRING,
		},
		Billing:             awsdynamodb.Billing_OnDemand(nil),
		TimeToLiveAttribute: jsii.String("ttl"),
		RemovalPolicy:       removalPolicy(cfg.DestroyOnDelete),
	})

	// Report topic
	topic := awssns.NewTopic(stack, jsii.String("ReportTopic"), &awssns.TopicProps{
		TopicName: jsii.String(cfg.TableName + "-reports"),
	})

	commonEnv := &map[string]*string{
		"TABLE_NAME": table.TableName(),
	}
	if cfg.AirflowBaseURL != "" {
		(*commonEnv)["AIRFLOW_BASE_URL"] = jsii.String(cfg.AirflowBaseURL)
	}

	timeout := awscdk.Duration_Seconds(jsii.Number(cfg.Timeout))
	memorySize := jsii.Number(cfg.MemorySize)
	logRetention := logRetentionDays(cfg.LogRetentionDays)

	makeFn := func(name string, env *map[string]*string) awslambda.Function {
		return awslambda.NewFunction(stack, jsii.String(name), &awslambda.FunctionProps{
			FunctionName: jsii.String(cfg.TableName + "-" + name),
			Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
			Handler:      jsii.String("bootstrap"),
			Code:         awslambda.Code_FromAsset(jsii.String(filepath.Join(cfg.LambdaDistDir, name)), nil),
			Architecture: awslambda.Architecture_ARM_64(),
			MemorySize:   memorySize,
			Timeout:      timeout,
			Environment:  env,
			LogRetention: logRetention,
		})
	}

	launcherEnv := copyEnv(commonEnv)
	launcherFn := makeFn("launcher", launcherEnv)

	// The reporter is the only function that dispatches, so only it gets the
	// topic ARN and the webhook secret.
	reporterEnv := copyEnv(commonEnv)
	(*reporterEnv)["SNS_TOPIC_ARN"] = topic.TopicArn()
	if cfg.WebhookSecretARN != "" {
		(*reporterEnv)["SLACK_WEBHOOK_SECRET_ARN"] = jsii.String(cfg.WebhookSecretARN)
	}
	reporterFn := makeFn("reporter", reporterEnv)

	// Both functions write execution records: the launcher creates them, the
	// reporter updates them with the report.
	table.GrantReadWriteData(launcherFn)
	table.GrantReadWriteData(reporterFn)
	topic.GrantPublish(reporterFn)

	if cfg.WebhookSecretARN != "" {
		reporterFn.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
			Actions:   &[]*string{jsii.String("secretsmanager:GetSecretValue")},
			Resources: &[]*string{jsii.String(cfg.WebhookSecretARN)},
		}))
	}

	// Suite state machine: launch, wait, report.
	aslJSON := loadASL(cfg.ASLPath)
	sfnRole := awsiam.NewRole(stack, jsii.String("SfnRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("states.amazonaws.com"), nil),
	})
	sfnRole.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: &[]*string{jsii.String("lambda:InvokeFunction")},
		Resources: &[]*string{
			launcherFn.FunctionArn(),
			reporterFn.FunctionArn(),
		},
	}))

	sfnMachine := awsstepfunctions.NewCfnStateMachine(stack, jsii.String("StateMachine"), &awsstepfunctions.CfnStateMachineProps{
		StateMachineName: jsii.String(cfg.TableName + "-suite"),
		StateMachineType: jsii.String("STANDARD"),
		RoleArn:          sfnRole.RoleArn(),
		DefinitionString: jsii.String(aslJSON),
		DefinitionSubstitutions: map[string]*string{
			"LauncherFunctionArn": launcherFn.FunctionArn(),
			"ReporterFunctionArn": reporterFn.FunctionArn(),
		},
	})

	// Nightly schedule starts the state machine, not the launcher directly,
	// so the wait and report phases always follow.
	scheduleRole := awsiam.NewRole(stack, jsii.String("ScheduleRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("events.amazonaws.com"), nil),
	})
	scheduleRole.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   &[]*string{jsii.String("states:StartExecution")},
		Resources: &[]*string{sfnMachine.AttrArn()},
	}))
	awsevents.NewCfnRule(stack, jsii.String("NightlyRule"), &awsevents.CfnRuleProps{
		Name:               jsii.String(cfg.TableName + "-nightly"),
		ScheduleExpression: jsii.String(cfg.ScheduleExpression),
		State:              jsii.String("ENABLED"),
		Targets: &[]*awsevents.CfnRule_TargetProperty{
			{
				Arn:     sfnMachine.AttrArn(),
				Id:      jsii.String("suite-state-machine"),
				RoleArn: scheduleRole.RoleArn(),
				Input:   jsii.String("{}"),
			},
		},
	})

	awscdk.NewCfnOutput(stack, jsii.String("TableName"), &awscdk.CfnOutputProps{
		Value: table.TableName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("TopicArn"), &awscdk.CfnOutputProps{
		Value: topic.TopicArn(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("StateMachineArn"), &awscdk.CfnOutputProps{
		Value: sfnMachine.AttrArn(),
	})

	return stack
}

func copyEnv(src *map[string]*string) *map[string]*string {
	dst := make(map[string]*string, len(*src))
	for k, v := range *src {
		dst[k] = v
	}
	return &dst
}

func loadASL(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		panic("failed to read ASL file: " + err.Error())
	}
	return string(data)
}

func removalPolicy(destroy bool) awscdk.RemovalPolicy {
	if destroy {
		return awscdk.RemovalPolicy_DESTROY
	}
	return awscdk.RemovalPolicy_RETAIN
}

func logRetentionDays(days float64) awslogs.RetentionDays {
	switch days {
	case 1:
		return awslogs.RetentionDays_ONE_DAY
	case 3:
		return awslogs.RetentionDays_THREE_DAYS
	case 5:
		return awslogs.RetentionDays_FIVE_DAYS
	case 7:
		return awslogs.RetentionDays_ONE_WEEK
	case 14:
		return awslogs.RetentionDays_TWO_WEEKS
	case 30:
		return awslogs.RetentionDays_ONE_MONTH
	case 60:
		return awslogs.RetentionDays_TWO_MONTHS
	case 90:
		return awslogs.RetentionDays_THREE_MONTHS
	case 365:
		return awslogs.RetentionDays_ONE_YEAR
	default:
		return awslogs.RetentionDays_ONE_WEEK
	}
}
