package crossaccount

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime configuration shared by the handlers. All
// values come from the environment; topic ARNs are derived from the
// region and home account when not set explicitly.
type Config struct {
	// Region is the region the home-account resources live in.
	Region string `env:"AWS_REGION" envDefault:"us-east-1"`

	// HomeAccountID is the account that owns the registries, the topics
	// and the definitive copy of every managed role.
	HomeAccountID string `env:"HOME_ACCOUNT_ID"`

	// ConfigBucket is the bucket definition files are dropped into.
	ConfigBucket string `env:"CONFIG_BUCKET"`

	// Registry table names.
	AccountsTable string `env:"ACCOUNTS_TABLE" envDefault:"CrossAccountManager-Accounts"`
	RolesTable    string `env:"ROLES_TABLE" envDefault:"CrossAccountManager-Roles"`
	BindingsTable string `env:"BINDINGS_TABLE" envDefault:"CrossAccountManager-Account-Roles"`

	// Topic ARN overrides. Leave empty to derive from region and home
	// account.
	AccountTopicARN string `env:"ACCOUNT_TOPIC_ARN"`
	RoleTopicARN    string `env:"ROLE_TOPIC_ARN"`
	LinkTopicARN    string `env:"ACCESS_LINKS_TOPIC_ARN"`

	// RolePrefix is prepended to every definition suffix to form the
	// managed role name.
	RolePrefix string `env:"ROLE_PREFIX" envDefault:"CrossAccountManager-"`

	// AdminRole is the delegated role assumed in member accounts for
	// provisioning.
	AdminRole string `env:"SUB_ACCOUNT_ADMIN_ROLE" envDefault:"CrossAccountManager-Admin-DO-NOT-DELETE"`

	// HomeTrustService is the service principal trusted by the
	// home-account copy of a managed role.
	HomeTrustService string `env:"HOME_TRUST_SERVICE" envDefault:"ds.amazonaws.com"`

	// PolicyPrefix is the key prefix policy documents are stored under in
	// the config bucket.
	PolicyPrefix string `env:"POLICY_PREFIX" envDefault:"custom_policy/"`

	// HomeSettleDelay is the settling delay between deleting and
	// recreating a role in the home account.
	HomeSettleDelay time.Duration `env:"HOME_SETTLE_DELAY" envDefault:"10s"`

	// SubSettleDelay is the settling delay between deleting and
	// recreating a role in a member account.
	SubSettleDelay time.Duration `env:"SUB_ACCOUNT_SETTLE_DELAY" envDefault:"60s"`

	// LogLevel is the slog level: debug, info, warn or error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig parses configuration from the environment and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, ErrValidation("parse environment").WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.HomeAccountID == "" {
		return ErrValidation("HOME_ACCOUNT_ID must be set")
	}
	if c.Region == "" {
		return ErrValidation("AWS_REGION must be set")
	}
	if c.RolePrefix == "" {
		return ErrValidation("ROLE_PREFIX must not be empty")
	}
	return nil
}

// AccountTopic returns the lifecycle-event topic ARN.
func (c *Config) AccountTopic() string {
	if c.AccountTopicARN != "" {
		return c.AccountTopicARN
	}
	return c.topicARN("CrossAccountManager-AccountTopic")
}

// RoleTopic returns the role-provisioning topic ARN.
func (c *Config) RoleTopic() string {
	if c.RoleTopicARN != "" {
		return c.RoleTopicARN
	}
	return c.topicARN("CrossAccountManager-RoleTopic")
}

// LinkTopic returns the access-links refresh topic ARN.
func (c *Config) LinkTopic() string {
	if c.LinkTopicARN != "" {
		return c.LinkTopicARN
	}
	return c.topicARN("CrossAccountManager-AccessLinksTopic")
}

// RoleName derives the managed role name from a definition suffix.
func (c *Config) RoleName(suffix string) string {
	return c.RolePrefix + suffix
}

func (c *Config) topicARN(name string) string {
	return fmt.Sprintf("arn:aws:sns:%s:%s:%s", c.Region, c.HomeAccountID, name)
}
