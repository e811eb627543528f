package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"sqsinspect/internal/config"
	"sqsinspect/internal/metrics"
	"sqsinspect/internal/output"
	"sqsinspect/internal/queue"
	"sqsinspect/internal/types"
)

const (
	defaultRegion   = "eu-north-1"
	identityTimeout = 10 * time.Second
)

// stsAPI is the subset of the STS client used to verify the caller.
type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// awsClients bundles the service clients a run talks to.
type awsClients struct {
	SQS        queue.SQSAPI
	S3         output.S3Client
	CloudWatch metrics.CloudWatchClient
	STS        stsAPI
}

// loadAWSConfig resolves the SDK configuration. Static credentials take
// precedence over the profile and the default chain.
func loadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	if c.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	if c.HasStaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey.Unmask(), c.SessionToken.Unmask()),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, types.NewAppError(types.ErrCodeConfigInvalid, "failed to load AWS configuration", err)
	}

	if c.EndpointURL != "" {
		cfg.BaseEndpoint = aws.String(c.EndpointURL)
	}
	return cfg, nil
}

// newAWSClients builds the service clients from a resolved configuration.
// S3 switches to path-style addressing when an endpoint override is set.
func newAWSClients(cfg aws.Config) awsClients {
	pathStyle := cfg.BaseEndpoint != nil
	return awsClients{
		SQS: sqs.NewFromConfig(cfg),
		S3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = pathStyle
		}),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
		STS:        sts.NewFromConfig(cfg),
	}
}

// verifyIdentity calls STS GetCallerIdentity and logs who the run is acting
// as. Credentials that cannot sign a request fail here, before any queue call.
func verifyIdentity(ctx context.Context, client stsAPI, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, identityTimeout)
	defer cancel()

	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return types.NewAppError(types.ErrCodeIdentityUnavailable, "failed to verify AWS identity", err)
	}

	logger.Info("AWS identity verified",
		"account_id", aws.ToString(out.Account),
		"arn", aws.ToString(out.Arn),
	)
	return nil
}

// describeEndpoint names the endpoint override for logs.
func describeEndpoint(c config.AWSConfig) string {
	if c.EndpointURL == "" {
		return fmt.Sprintf("aws (%s)", c.Region)
	}
	return c.EndpointURL
}
