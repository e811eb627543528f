package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"sqsinspect/internal/config"
	"sqsinspect/internal/types"
)

// cliFlags holds the parsed command line. Only flags the operator actually
// passed become config overrides, so environment values survive for the rest.
type cliFlags struct {
	fs *flag.FlagSet

	logLevel  string
	logFormat string

	region         string
	profile        string
	accessKey      string
	secretKey      string
	sessionToken   string
	endpointURL    string
	verifyIdentity bool

	queueURL           string
	messagesPerReceive int
	visibilityTimeout  int
	visibilityFloor    int
	maxStalls          int
	maxReceives        int
	maxDuration        time.Duration
	concurrency        int

	outfile string

	metricNamespace string
	metricsTextfile string
}

// legacyAliases maps the underscore option names accepted by earlier
// releases to their current flag.
var legacyAliases = map[string]string{
	"aws_access_key":           "access-key",
	"aws_secret_key":           "secret-key",
	"aws_region":               "region",
	"aws_session_token":        "session-token",
	"sqs_queue_url":            "queue-url",
	"sqs_messages_per_receive": "messages-per-receive",
	"sqs_visibility_timeout":   "visibility-timeout",
	"outfile":                  "outfile",
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{fs: flag.NewFlagSet("sqs-inspect", flag.ContinueOnError)}
	fs := f.fs
	fs.SetOutput(stderr)

	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: text or json (env LOG_FORMAT)")

	fs.StringVar(&f.region, "region", "", "AWS region (env AWS_REGION, default eu-north-1)")
	fs.StringVar(&f.profile, "profile", "", "AWS shared config profile (env AWS_PROFILE)")
	fs.StringVar(&f.accessKey, "access-key", "", "AWS access key id (env AWS_ACCESS_KEY_ID)")
	fs.StringVar(&f.secretKey, "secret-key", "", "AWS secret access key (env AWS_SECRET_ACCESS_KEY)")
	fs.StringVar(&f.sessionToken, "session-token", "", "AWS session token (env AWS_SESSION_TOKEN)")
	fs.StringVar(&f.endpointURL, "endpoint-url", "", "Override the AWS endpoint, e.g. LocalStack (env AWS_ENDPOINT_URL)")
	fs.BoolVar(&f.verifyIdentity, "verify-identity", false, "Log the caller identity via STS before inspecting")

	fs.StringVar(&f.queueURL, "queue-url", "", "SQS queue URL [required] (env SQS_QUEUE_URL)")
	fs.IntVar(&f.messagesPerReceive, "messages-per-receive", 0, "Max messages per receive call, 1-10 (default 10)")
	fs.IntVar(&f.visibilityTimeout, "visibility-timeout", 0, "Seconds received messages stay hidden; 0 derives it from the queue depth")
	fs.IntVar(&f.visibilityFloor, "visibility-floor", 0, "Minimum derived visibility timeout in seconds (default 15)")
	fs.IntVar(&f.maxStalls, "max-stalls", 0, "Consecutive empty receive rounds before giving up (default 3)")
	fs.IntVar(&f.maxReceives, "max-receives", 0, "Cap on receive calls; 0 derives it from the queue depth")
	fs.DurationVar(&f.maxDuration, "max-duration", 0, "Wall-clock budget for the drain; 0 disables it")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Receive calls issued per round, 1-10 (default 1)")

	fs.StringVar(&f.outfile, "outfile", "", "Output file or s3://bucket/key; .zst compresses (default sqs-inspect.json)")

	fs.StringVar(&f.metricNamespace, "metric-namespace", "", "Publish run metrics to this CloudWatch namespace")
	fs.StringVar(&f.metricsTextfile, "metrics-textfile", "", "Write run metrics to this Prometheus textfile")

	for alias, name := range legacyAliases {
		if alias == name {
			continue
		}
		target := fs.Lookup(name)
		fs.Var(target.Value, alias, fmt.Sprintf("Alias for --%s", name))
	}

	fs.Usage = func() {
		fmt.Fprintf(stderr, "sqs-inspect\n\n")
		fmt.Fprintf(stderr, "Reads every message currently in an SQS queue without deleting it and\n")
		fmt.Fprintf(stderr, "writes them, newest first, as a JSON array.\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  sqs-inspect --queue-url=URL [--outfile=PATH] [--region=REGION]\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return f, nil
}

// set reports whether the named flag (or one of its aliases) was passed.
func (f *cliFlags) set(name string) bool {
	found := false
	f.fs.Visit(func(fl *flag.Flag) {
		if canonicalFlag(fl.Name) == name {
			found = true
		}
	})
	return found
}

// overrides converts the passed flags into config overrides.
func (f *cliFlags) overrides() []config.Override {
	apply := map[string]config.Override{
		"log-level":  func(c *config.Config) { c.LogLevel = f.logLevel },
		"log-format": func(c *config.Config) { c.LogFormat = f.logFormat },

		"region":          func(c *config.Config) { c.AWS.Region = f.region },
		"profile":         func(c *config.Config) { c.AWS.Profile = f.profile },
		"access-key":      func(c *config.Config) { c.AWS.AccessKeyID = f.accessKey },
		"secret-key":      func(c *config.Config) { c.AWS.SecretAccessKey = types.SecretString(f.secretKey) },
		"session-token":   func(c *config.Config) { c.AWS.SessionToken = types.SecretString(f.sessionToken) },
		"endpoint-url":    func(c *config.Config) { c.AWS.EndpointURL = f.endpointURL },
		"verify-identity": func(c *config.Config) { c.AWS.VerifyIdentity = f.verifyIdentity },

		"queue-url":            func(c *config.Config) { c.Queue.URL = f.queueURL },
		"messages-per-receive": func(c *config.Config) { c.Queue.MessagesPerReceive = f.messagesPerReceive },
		"visibility-timeout":   func(c *config.Config) { c.Queue.VisibilityTimeoutSeconds = f.visibilityTimeout },
		"visibility-floor":     func(c *config.Config) { c.Queue.VisibilityFloorSeconds = f.visibilityFloor },
		"max-stalls":           func(c *config.Config) { c.Queue.MaxStalledReceives = f.maxStalls },
		"max-receives":         func(c *config.Config) { c.Queue.MaxReceives = f.maxReceives },
		"max-duration":         func(c *config.Config) { c.Queue.MaxDuration = f.maxDuration },
		"concurrency":          func(c *config.Config) { c.Queue.Concurrency = f.concurrency },

		"outfile": func(c *config.Config) { c.Output.Destination = f.outfile },

		"metric-namespace": func(c *config.Config) { c.Observability.MetricNamespace = f.metricNamespace },
		"metrics-textfile": func(c *config.Config) { c.Observability.MetricsTextfile = f.metricsTextfile },
	}

	seen := make(map[string]bool)
	var out []config.Override
	f.fs.Visit(func(fl *flag.Flag) {
		name := canonicalFlag(fl.Name)
		if seen[name] {
			return
		}
		if o, ok := apply[name]; ok {
			seen[name] = true
			out = append(out, o)
		}
	})
	return out
}

// regionHint returns the region to reach Parameter Store with before the
// full configuration is loaded.
func (f *cliFlags) regionHint(lookupEnv func(string) (string, bool)) string {
	if f.set("region") {
		return f.region
	}
	if v, ok := lookupEnv("AWS_REGION"); ok && v != "" {
		return v
	}
	return defaultRegion
}

// endpointHint is regionHint for the endpoint override.
func (f *cliFlags) endpointHint(lookupEnv func(string) (string, bool)) string {
	if f.set("endpoint-url") {
		return f.endpointURL
	}
	v, _ := lookupEnv("AWS_ENDPOINT_URL")
	return v
}

func canonicalFlag(name string) string {
	if c, ok := legacyAliases[name]; ok {
		return c
	}
	return name
}
