package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const secretRefPrefix = "secretsmanager://"

// secretResolver fetches a secret's current value by id. Values are not
// cached: every load, including a reload, fetches each reference again.
type secretResolver interface {
	GetSecretValue(ctx context.Context, secretID string) (string, error)
}

type smResolver struct {
	client *secretsmanager.Client
}

func (r *smResolver) GetSecretValue(ctx context.Context, secretID string) (string, error) {
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)})
	if err != nil {
		return "", err
	}
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return "", fmt.Errorf("secret %q has no string value", secretID)
}

// resolveSecretRefs replaces every "secretsmanager://<secret-id>" value
// found in an upstream's env map with the secret's live value. It's a
// no-op (and never initializes an AWS client) when no such reference is
// present anywhere in the config, so a deployment with no secrets manager
// access never needs AWS credentials.
func (c *Config) resolveSecretRefs(ctx context.Context) error {
	if !c.hasSecretRefs() {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading AWS config for secretsmanager resolution: %w", err)
	}
	resolver := &smResolver{client: secretsmanager.NewFromConfig(awsCfg)}

	for id, up := range c.Upstreams {
		for k, v := range up.Env {
			if !IsSecretRef(v) {
				continue
			}
			secretID := strings.TrimPrefix(v, secretRefPrefix)
			value, err := resolver.GetSecretValue(ctx, secretID)
			if err != nil {
				return fmt.Errorf("upstreams[%q].env[%q]: resolving %q: %w", id, k, v, err)
			}
			up.Env[k] = value
		}
	}
	return nil
}

func (c *Config) hasSecretRefs() bool {
	for _, up := range c.Upstreams {
		for _, v := range up.Env {
			if IsSecretRef(v) {
				return true
			}
		}
	}
	return false
}
