package config

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SecretProvider resolves Parameter Store paths to their decrypted values.
// Paths it cannot resolve are absent from the result.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, paths []string) (map[string]string, error)
}

// ssmBatchLimit is the GetParameters maximum.
const ssmBatchLimit = 10

type ssmAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider reads SecureString parameters from the region the binary runs in.
// The client is created on first use so local runs never load AWS credentials.
type SSMProvider struct {
	aws    AWSConfig
	once   sync.Once
	client ssmAPI
	err    error
}

// NewSSMProvider creates a provider for region.
func NewSSMProvider(region string) *SSMProvider {
	return &SSMProvider{aws: AWSConfig{Region: region}}
}

func (p *SSMProvider) api(ctx context.Context) (ssmAPI, error) {
	p.once.Do(func() {
		if p.client != nil {
			return
		}
		cfg, err := p.aws.LoadAWS(ctx)
		if err != nil {
			p.err = err
			return
		}
		p.client = ssm.NewFromConfig(cfg)
	})
	return p.client, p.err
}

func (p *SSMProvider) GetParametersBatch(ctx context.Context, paths []string) (map[string]string, error) {
	values := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return values, nil
	}
	client, err := p.api(ctx)
	if err != nil {
		return nil, err
	}

	for batch := range slices.Chunk(paths, ssmBatchLimit) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolving SSM parameters: %w", err)
		}
		out, err := client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          batch,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("SSM GetParameters %v: %w", batch, err)
		}
		if len(out.InvalidParameters) > 0 {
			return nil, fmt.Errorf("SSM parameters not found: %v", out.InvalidParameters)
		}
		for _, param := range out.Parameters {
			values[aws.ToString(param.Name)] = aws.ToString(param.Value)
		}
	}
	return values, nil
}
