package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// GetSecretValueAPI is the subset of the Secrets Manager client the Manager
// consumes. Tests provide a fake; production code passes the real client.
type GetSecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	region       string
	baseEndpoint string
	accessKey    string
	secretKey    string
	sessionToken string
}

// WithRegion sets the AWS region.
//
// If unset, the region resolves from the environment and shared config.
//
// Parameters:
//   - region: The AWS region (e.g., "us-east-1")
//
// Returns:
//   - ManagerOption: A configuration option
func WithRegion(region string) ManagerOption {
	return func(c *managerConfig) {
		c.region = region
	}
}

// WithStaticCredentials sets static AWS credentials instead of the default
// provider chain. Intended for local development against emulators.
//
// Parameters:
//   - accessKey: The AWS access key ID
//   - secretKey: The AWS secret access key
//   - sessionToken: The session token, or empty
//
// Returns:
//   - ManagerOption: A configuration option
func WithStaticCredentials(accessKey, secretKey, sessionToken string) ManagerOption {
	return func(c *managerConfig) {
		c.accessKey = accessKey
		c.secretKey = secretKey
		c.sessionToken = sessionToken
	}
}

// WithBaseEndpoint overrides the Secrets Manager endpoint. Intended for
// local development against emulators such as LocalStack.
//
// Parameters:
//   - endpoint: The endpoint URL
//
// Returns:
//   - ManagerOption: A configuration option
func WithBaseEndpoint(endpoint string) ManagerOption {
	return func(c *managerConfig) {
		c.baseEndpoint = endpoint
	}
}

// Manager is a Loader backed by AWS Secrets Manager.
//
// Thread-safe for concurrent use.
type Manager struct {
	api GetSecretValueAPI
}

// Compile-time assertion that Manager implements Loader.
var _ Loader = (*Manager)(nil)

// NewManager creates a Secrets Manager-backed loader using the default AWS
// configuration chain.
//
// Parameters:
//   - ctx: Context for loading AWS configuration
//   - opts: Configuration options (e.g., WithRegion)
//
// Returns:
//   - *Manager: A loader ready for use
//   - error: An error if AWS configuration cannot be loaded
//
// Example:
//
//	loader, err := secrets.NewManager(ctx, secrets.WithRegion("eu-west-1"))
//	if err != nil {
//	    return err
//	}
//	creds, err := loader.Load(ctx, "bank/primary")
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	var mc managerConfig
	for _, opt := range opts {
		opt(&mc)
	}

	var loadOpts []func(*config.LoadOptions) error
	if mc.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(mc.region))
	}
	if mc.accessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(mc.accessKey, mc.secretKey, mc.sessionToken)
		loadOpts = append(loadOpts, config.WithCredentialsProvider(provider))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if mc.baseEndpoint != "" {
			o.BaseEndpoint = aws.String(mc.baseEndpoint)
		}
	})

	return &Manager{api: client}, nil
}

// NewManagerFromAPI creates a Manager around an existing Secrets Manager
// client (or a fake in tests).
//
// Parameters:
//   - api: The Secrets Manager API to use
//
// Returns:
//   - *Manager: A loader ready for use
func NewManagerFromAPI(api GetSecretValueAPI) *Manager {
	return &Manager{api: api}
}

// Load retrieves the secret payload under secretID and decodes it as JSON
// credentials.
//
// Parameters:
//   - ctx: Context for the AWS call
//   - secretID: The secret name or ARN
//
// Returns:
//   - Credentials: The decoded credentials
//   - error: ErrEmptySecret if the payload has no string value, or a
//     retrieval/decoding error
func (m *Manager) Load(ctx context.Context, secretID string) (Credentials, error) {
	out, err := m.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("get secret %q: %w", secretID, err)
	}

	if out.SecretString == nil {
		return Credentials{}, fmt.Errorf("%w: %s", ErrEmptySecret, secretID)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(*out.SecretString), &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode secret %q: %w", secretID, err)
	}

	return creds, nil
}
