package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Version     string `envconfig:"VERSION" default:"dev"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`

	// DocuSign eSignature REST API.
	DocuSignBaseURL   string `envconfig:"DOCUSIGN_BASE_URL" required:"true"`
	DocuSignAccountID string `envconfig:"DOCUSIGN_ACCOUNT_ID" required:"true"`
	DocuSignAuthToken string `envconfig:"DOCUSIGN_AUTH_TOKEN" required:"true"`
	CallbackBaseURL   string `envconfig:"CALLBACK_BASE_URL" required:"true"`

	// Identity providers. Empty tokens disable the corresponding resolver.
	GitHubToken  string `envconfig:"GITHUB_TOKEN" default:""`
	GitLabToken  string `envconfig:"GITLAB_TOKEN" default:""`
	GitLabAPIURL string `envconfig:"GITLAB_API_URL" default:""`

	// Signed document storage and outbound email.
	SignedDocsBucket string `envconfig:"SIGNED_DOCS_BUCKET" default:""`
	EmailFromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:""`
	AWSRegion        string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Timeout in seconds applied to outbound provider calls.
	ProviderTimeout int `envconfig:"PROVIDER_TIMEOUT" default:"30"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
