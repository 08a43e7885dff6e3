package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// projectTarget holds the flags naming one author's project
type projectTarget struct {
	projectID string
	authorID  string
}

func (x *projectTarget) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Usage:       "Project ID",
			Required:    true,
			Destination: &x.projectID,
		},
		&cli.StringFlag{
			Name:        "author",
			Usage:       "Author ID owning the project",
			Required:    true,
			Destination: &x.authorID,
		},
	}
}

// batchUseCases wires the use cases for one-shot commands
func batchUseCases(ctx context.Context, appCfg *config.AppConfig, repoCfg *config.Repository, llmCfg *config.LLM) (*usecase.UseCases, func(), error) {
	ucCfg, err := appCfg.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load configuration")
	}

	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}
	closer := func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}

	llmService, err := llmCfg.Configure(ctx)
	if err != nil {
		closer()
		return nil, nil, goerr.Wrap(err, "failed to initialize llm service")
	}

	return usecase.New(repo, llmService, usecase.WithConfig(ucCfg)), closer, nil
}

func cmdSynthesize() *cli.Command {
	var target projectTarget
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var llmCfg config.LLM

	flags := target.Flags()
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)

	return &cli.Command{
		Name:  "synthesize",
		Usage: "Generate the chapter draft of a project from its fragments",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := batchUseCases(ctx, &appCfg, &repoCfg, &llmCfg)
			if err != nil {
				return err
			}
			defer closer()

			chapters, err := uc.Synthesis.Synthesize(ctx, model.AuthorID(target.authorID), model.ProjectID(target.projectID))
			if err != nil {
				return goerr.Wrap(err, "failed to synthesize chapters")
			}

			header := color.New(color.FgCyan, color.Bold)
			for _, ch := range chapters {
				header.Fprintf(c.Root().Writer, "%d. %s\n", ch.Order, ch.Title) //nolint:errcheck
			}
			return nil
		},
	}
}
