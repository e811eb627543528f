// Package main implements sqs-inspect, a one-shot tool that snapshots the
// contents of an SQS queue without consuming it.
//
// Usage:
//
//	sqs-inspect --queue-url=https://sqs.eu-north-1.amazonaws.com/123456789012/orders
//	sqs-inspect --queue-url=URL --outfile=s3://bucket/snapshots/orders.json.zst
//	SQS_QUEUE_URL=URL AWS_PROFILE=ops sqs-inspect --max-duration=2m
//
// The tool performs the following:
//  1. Loads configuration from flags, the environment, a .env file and, outside
//     local runs, SSM Parameter Store.
//  2. Optionally verifies the AWS identity via STS GetCallerIdentity.
//  3. Estimates the queue depth and receives that many messages under a
//     visibility timeout long enough to cover the whole drain. Messages are
//     never deleted; they reappear once the timeout expires.
//  4. Normalizes the messages, orders them newest first and writes a JSON
//     array to a file or S3 object.
//
// Exit statuses: 0 on success (including a stalled drain, which still writes
// its partial result), 2 for configuration errors, 3 when AWS is unreachable,
// 4 when the output cannot be written and 1 for anything else.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"sqsinspect/internal/config"
	"sqsinspect/internal/types"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr, os.LookupEnv, loadAWSClients)
	cancel()
	os.Exit(code)
}

// newSecretProvider builds the Parameter Store or environment provider.
var newSecretProvider = config.NewSecretProvider

// clientFactory resolves the AWS clients for a loaded configuration.
type clientFactory func(ctx context.Context, cfg *config.Config) (awsClients, error)

func loadAWSClients(ctx context.Context, cfg *config.Config) (awsClients, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return awsClients{}, err
	}
	return newAWSClients(awsCfg), nil
}

// run is main without the process exit, returning the exit status.
func run(ctx context.Context, args []string, stderr io.Writer, lookupEnv func(string) (string, bool), newClients clientFactory) int {
	bootLogger := newLogger("info", "text", stderr)

	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return types.ExitOK
		}
		bootLogger.Error("invalid arguments", "error", err)
		return types.ExitConfig
	}

	// The provider is chosen inside the loader, after .env has been read, so
	// APP_ENV and the region/endpoint hints may come from the dotenv file.
	providerFor := func(appEnv string) config.SecretProvider {
		return newSecretProvider(appEnv, flags.regionHint(lookupEnv), flags.endpointHint(lookupEnv))
	}

	cfg, err := config.LoadConfigWithFactory(providerFor, flags.overrides()...)
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		return types.ExitConfig
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	logger.Info("sqs-inspect starting",
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"build_time", cfg.Build.BuildTime,
		"env", cfg.Environment,
		"region", cfg.AWS.Region,
	)

	clients, err := newClients(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize AWS session", "error", err)
		return types.ExitCodeOf(err)
	}

	err = execute(ctx, cfg, clients, logger)
	switch {
	case err == nil:
	case types.CodeOf(err).IsDegraded():
		logger.Warn("queue drain stopped early; result is partial", "error", err)
	default:
		logger.Error("inspection failed", "error", err, "code", types.CodeOf(err))
	}
	return types.ExitCodeOf(err)
}
