package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/usecase/history"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect the analysis history",
		Commands: []*cli.Command{
			historyListCommand(),
			historyShowCommand(),
			historyClearCommand(),
			historyExportCommand(),
		},
	}
}

func historyListCommand() *cli.Command {
	var cfg config
	return &cli.Command{
		Name:  "list",
		Usage: "List recorded analyses, newest first",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			results, err := history.New(repo).List(ctx)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if len(results) == 0 {
				fmt.Fprintln(w, "No recorded analyses.")
				return nil
			}

			for _, result := range results {
				fmt.Fprintf(w, "%s  %s  %-8s  %s\n",
					result.CreatedAt.Format("2006-01-02 15:04:05"),
					result.ID,
					result.Severity,
					result.Species,
				)
			}
			return nil
		},
	}
}

func historyShowCommand() *cli.Command {
	var cfg config
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one analysis as JSON",
		ArgsUsage: "<result-id>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			if c.Args().Len() != 1 {
				return goerr.New("result ID is required")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			result, err := history.New(repo).Show(ctx, model.ResultID(c.Args().First()))
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to render result")
			}
			fmt.Fprintln(c.Root().Writer, string(data))
			return nil
		},
	}
}

func historyClearCommand() *cli.Command {
	var cfg config
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete all recorded analyses",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			if err := history.New(repo).Clear(ctx); err != nil {
				return err
			}

			fmt.Fprintln(c.Root().Writer, "History cleared.")
			return nil
		},
	}
}

func historyExportCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for the rescue report",
			Sources:     cli.EnvVars("VETSCAN_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "export",
		Usage:     "Export one analysis as a rescue report",
		ArgsUsage: "<result-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			if c.Args().Len() != 1 {
				return goerr.New("result ID is required")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			uc := history.New(repo, history.WithStorage(storage))
			key, err := uc.Export(ctx, model.ResultID(c.Args().First()))
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Report exported: gs://%s/%s\n", cfg.bucket, key)
			return nil
		},
	}
}
