package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmMaxBatchSize is the maximum number of parameters that can be retrieved
// in a single SSM GetParameters API call. This is an AWS service limit.
const ssmMaxBatchSize = 10

// ssmClient is the subset of the SSM SDK client used by SSMProvider.
type ssmClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider implements SecretProvider by resolving secret values from
// AWS Systems Manager (SSM) Parameter Store. Shared deployments keep the
// inspection credentials as SecureString parameters and point at them with
// _SSM_PARAM variables.
type SSMProvider struct {
	region   string
	endpoint string

	// client is created lazily on first use when nil.
	client ssmClient
}

// NewSSMProvider creates a new SSMProvider for the given region. A non-empty
// endpoint overrides the service endpoint (LocalStack).
func NewSSMProvider(region, endpoint string) *SSMProvider {
	return &SSMProvider{
		region:   region,
		endpoint: endpoint,
	}
}

// newSSMProviderWithClient creates a new SSMProvider with an injected SSM client.
func newSSMProviderWithClient(region string, client ssmClient) *SSMProvider {
	return &SSMProvider{
		region: region,
		client: client,
	}
}

func (p *SSMProvider) ensureClient(ctx context.Context) error {
	if p.client != nil {
		return nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(p.region),
	)
	if err != nil {
		return fmt.Errorf("loading AWS config for SSM (region=%s): %w", p.region, err)
	}

	p.client = ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if p.endpoint != "" {
			o.BaseEndpoint = aws.String(p.endpoint)
		}
	})
	return nil
}

// GetParametersBatch retrieves multiple secret values from AWS SSM Parameter
// Store, ten at a time, with decryption. Context cancellation is checked
// between batches. Parameters SSM reports as invalid are left out of the
// result; the loader names them by the variable they were meant to fill.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return make(map[string]string), nil
	}

	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(keys))

	for i := 0; i < len(keys); i += ssmMaxBatchSize {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during SSM parameter retrieval: %w", ctx.Err())
		default:
		}

		end := min(i+ssmMaxBatchSize, len(keys))
		batch := keys[i:end]

		output, err := p.client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          batch,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("SSM GetParameters failed (batch %d-%d of %d): %w",
				i, end-1, len(keys), err)
		}

		for _, param := range output.Parameters {
			if param.Name != nil && param.Value != nil {
				result[*param.Name] = *param.Value
			}
		}
	}

	return result, nil
}
