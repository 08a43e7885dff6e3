package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func cmdReindex() *cli.Command {
	var target projectTarget
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var llmCfg config.LLM

	flags := target.Flags()
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)

	return &cli.Command{
		Name:  "reindex",
		Usage: "Compute missing embeddings of a project's fragments",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := batchUseCases(ctx, &appCfg, &repoCfg, &llmCfg)
			if err != nil {
				return err
			}
			defer closer()

			result, err := uc.Fragment.Reindex(ctx, model.AuthorID(target.authorID), model.ProjectID(target.projectID))
			if err != nil {
				return goerr.Wrap(err, "failed to reindex fragments")
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "pending: %d\n", result.Pending) //nolint:errcheck
			color.New(color.FgGreen).Fprintf(w, "indexed: %d\n", result.Indexed) //nolint:errcheck
			if result.Failed > 0 {
				color.New(color.FgRed).Fprintf(w, "failed:  %d\n", result.Failed) //nolint:errcheck
				return goerr.New("some fragments could not be indexed", goerr.V("failed", result.Failed))
			}
			return nil
		},
	}
}
