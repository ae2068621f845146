package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "OP_REPORTER"

var (
	Feed = &cli.StringFlag{
		Name:    "feed",
		Value:   "-",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FEED"),
		Usage:   "Path to the runner outcome feed (JSON lines), '-' for stdin",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to an optional reporter config file (eg. 'reporter.yaml')",
	}
	SlackWebhookURL = &cli.StringFlag{
		Name:    "slack-webhook-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SLACK_WEBHOOK_URL"),
		Usage:   "Slack incoming webhook URL; empty disables Slack notifications",
	}
	TeamsWebhookURL = &cli.StringFlag{
		Name:    "teams-webhook-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEAMS_WEBHOOK_URL"),
		Usage:   "Microsoft Teams incoming webhook URL; empty disables Teams notifications",
	}
	ProjectName = &cli.StringFlag{
		Name:    "project-name",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROJECT_NAME"),
		Usage:   "Project label shown in notifications",
	}
	Environment = &cli.StringFlag{
		Name:    "environment",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENVIRONMENT"),
		Usage:   "Environment label shown in notifications (eg. 'staging')",
	}
	CIRunURL = &cli.StringFlag{
		Name:    "ci-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CI_URL"),
		Usage:   "Link to the CI run appended to full notifications",
	}
	OnlyOnFailure = &cli.BoolFlag{
		Name:    "only-on-failure",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ONLY_ON_FAILURE"),
		Usage:   "Send notifications only when the run has failures",
	}
	IncludeScreenshots = &cli.BoolFlag{
		Name:    "include-screenshots",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INCLUDE_SCREENSHOTS"),
		Usage:   "Annotate failures with screenshot availability",
	}
	MaxFailuresToShow = &cli.IntFlag{
		Name:    "max-failures",
		Value:   5,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MAX_FAILURES"),
		Usage:   "Maximum number of failures detailed per notification",
	}
	DeliveryTimeout = &cli.DurationFlag{
		Name:    "delivery-timeout",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DELIVERY_TIMEOUT"),
		Usage:   "Overall budget for delivering run-end notifications",
	}
)

var requiredFlags = []cli.Flag{
	Feed,
}

var optionalFlags = []cli.Flag{
	ConfigFile,
	SlackWebhookURL,
	TeamsWebhookURL,
	ProjectName,
	Environment,
	CIRunURL,
	OnlyOnFailure,
	IncludeScreenshots,
	MaxFailuresToShow,
	DeliveryTimeout,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if ctx.String(f.Names()[0]) == "" {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
