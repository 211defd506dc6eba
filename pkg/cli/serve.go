package cli

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/vetscan/vetscan/pkg/server"
	"github.com/vetscan/vetscan/pkg/usecase/analyze"
	"github.com/vetscan/vetscan/pkg/utils/logging"
)

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("VETSCAN_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, locationFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the dashboard API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			analyzer, err := analyze.New(gemini)
			if err != nil {
				return err
			}

			srv := server.New(analyzer, repo, server.WithLocation(cfg.location()))

			logging.From(ctx).Info("serving dashboard API", "addr", addr)
			httpServer := &http.Server{
				Addr:    addr,
				Handler: srv.Handler(),
				BaseContext: func(net.Listener) context.Context {
					return ctx
				},
			}

			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return goerr.Wrap(err, "server failed")
			}
			return nil
		},
	}
}
