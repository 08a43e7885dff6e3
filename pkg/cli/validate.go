package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var appCfg config.AppConfig
	var repoCfg config.Repository

	var flags []cli.Flag
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the tuning file and repository settings",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()
			w := c.Root().Writer
			failed := color.New(color.FgRed, color.Bold)
			passed := color.New(color.FgGreen)

			if appCfg.Path() == "" {
				return goerr.Wrap(config.ErrInvalidConfig, "--config is required for validate")
			}

			ucCfg, err := appCfg.Configure()
			if err != nil {
				failed.Fprintf(w, "✗ %s\n", err.Error()) //nolint:errcheck
				return goerr.Wrap(err, "configuration validation failed")
			}
			passed.Fprintf(w, "✓ %s\n", appCfg.Path()) //nolint:errcheck

			logger.Info("Configuration validation passed",
				"seed_topic", ucCfg.SeedTopic,
				"retrieval_limit", ucCfg.RetrievalLimit,
				"similarity_threshold", ucCfg.SimilarityThreshold,
				"outline_items", len(ucCfg.Outline),
			)

			if err := repoCfg.Validate(); err != nil {
				failed.Fprintf(w, "✗ %s\n", err.Error()) //nolint:errcheck
				return err
			}
			passed.Fprintf(w, "✓ repository backend %s\n", repoCfg.Backend()) //nolint:errcheck
			return nil
		},
	}
}
