package reporter

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-reporter/flags"
	"github.com/ethereum-optimism/infra/op-reporter/results"
)

// Config holds the application configuration. All recognized keys are
// enumerated here and resolved once at startup; nothing reads the
// environment after this point.
type Config struct {
	FeedPath string // Path to the runner outcome feed, "-" for stdin

	SlackWebhookURL string // Empty disables the Slack channel
	TeamsWebhookURL string // Empty disables the Teams channel

	ProjectName string
	Environment string
	CIRunURL    string

	OnlyOnFailure      bool // Gate all delivery on failed > 0
	IncludeScreenshots bool
	MaxFailuresToShow  int

	DeliveryTimeout time.Duration // Overall budget for run-end deliveries

	// Delivery client tuning; zero values take the notify defaults.
	DeliveryMaxAttempts int
	DeliveryBackoffBase time.Duration

	Log log.Logger
}

// fileConfig mirrors the YAML config file shape. File values only fill
// in flags that were not set explicitly on the command line or via
// environment.
type fileConfig struct {
	SlackWebhookURL    string `yaml:"slack_webhook_url,omitempty"`
	TeamsWebhookURL    string `yaml:"teams_webhook_url,omitempty"`
	ProjectName        string `yaml:"project_name,omitempty"`
	Environment        string `yaml:"environment,omitempty"`
	CIRunURL           string `yaml:"ci_url,omitempty"`
	OnlyOnFailure      *bool  `yaml:"only_on_failure,omitempty"`
	IncludeScreenshots *bool  `yaml:"include_screenshots,omitempty"`
	MaxFailuresToShow  *int   `yaml:"max_failures,omitempty"`
}

// NewConfig creates a new Config from cli context.
func NewConfig(ctx *cli.Context, l log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	cfg := &Config{
		FeedPath:           ctx.String(flags.Feed.Name),
		SlackWebhookURL:    ctx.String(flags.SlackWebhookURL.Name),
		TeamsWebhookURL:    ctx.String(flags.TeamsWebhookURL.Name),
		ProjectName:        ctx.String(flags.ProjectName.Name),
		Environment:        ctx.String(flags.Environment.Name),
		CIRunURL:           ctx.String(flags.CIRunURL.Name),
		OnlyOnFailure:      ctx.Bool(flags.OnlyOnFailure.Name),
		IncludeScreenshots: ctx.Bool(flags.IncludeScreenshots.Name),
		MaxFailuresToShow:  ctx.Int(flags.MaxFailuresToShow.Name),
		DeliveryTimeout:    ctx.Duration(flags.DeliveryTimeout.Name),
		Log:                l,
	}

	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file '%s': %w", path, err)
		}
		cfg.applyFileConfig(ctx, fc)
	}

	if cfg.MaxFailuresToShow <= 0 {
		cfg.MaxFailuresToShow = results.DefaultMaxFailuresToShow
	}
	return cfg, nil
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return &fc, nil
}

// applyFileConfig merges file values under explicitly-set flags. Flags
// (and their env vars) take precedence; the file fills the gaps.
func (c *Config) applyFileConfig(ctx *cli.Context, fc *fileConfig) {
	if !ctx.IsSet(flags.SlackWebhookURL.Name) && fc.SlackWebhookURL != "" {
		c.SlackWebhookURL = fc.SlackWebhookURL
	}
	if !ctx.IsSet(flags.TeamsWebhookURL.Name) && fc.TeamsWebhookURL != "" {
		c.TeamsWebhookURL = fc.TeamsWebhookURL
	}
	if !ctx.IsSet(flags.ProjectName.Name) && fc.ProjectName != "" {
		c.ProjectName = fc.ProjectName
	}
	if !ctx.IsSet(flags.Environment.Name) && fc.Environment != "" {
		c.Environment = fc.Environment
	}
	if !ctx.IsSet(flags.CIRunURL.Name) && fc.CIRunURL != "" {
		c.CIRunURL = fc.CIRunURL
	}
	if !ctx.IsSet(flags.OnlyOnFailure.Name) && fc.OnlyOnFailure != nil {
		c.OnlyOnFailure = *fc.OnlyOnFailure
	}
	if !ctx.IsSet(flags.IncludeScreenshots.Name) && fc.IncludeScreenshots != nil {
		c.IncludeScreenshots = *fc.IncludeScreenshots
	}
	if !ctx.IsSet(flags.MaxFailuresToShow.Name) && fc.MaxFailuresToShow != nil {
		c.MaxFailuresToShow = *fc.MaxFailuresToShow
	}
}
