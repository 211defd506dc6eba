package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/vetscan/vetscan/pkg/usecase/live"
)

func monitorCommand() *cli.Command {
	var (
		cfg      config
		interval time.Duration
	)

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "interval",
			Usage:       "Frame sampling interval",
			Value:       time.Second,
			Sources:     cli.EnvVars("VETSCAN_SAMPLE_INTERVAL"),
			Destination: &interval,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, captureFlags(&cfg)...)

	return &cli.Command{
		Name:  "monitor",
		Usage: "Stream camera frames to the live AI monitor",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}
			if cfg.sampleInterval > 0 && !c.IsSet("interval") {
				interval = cfg.sampleInterval
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			camera := cfg.newCamera()
			if err := camera.Open(ctx); err != nil {
				return goerr.Wrap(err, "camera access denied or unavailable, check the device and retry")
			}
			defer camera.Close()

			monitor := live.New(gemini, camera, live.WithSampleInterval(interval))
			if err := monitor.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start live monitor")
			}
			defer monitor.Stop()

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := c.Root().Writer
			fmt.Fprintln(w, "Live monitor running, Ctrl-C to stop.")

			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(w, "\nStopping live monitor...")
					return nil

				case ev := <-monitor.Events():
					switch ev.Kind {
					case live.EventStatus:
						fmt.Fprintf(w, "[status] %s\n", ev.Text)
					case live.EventTranscription:
						fmt.Fprintf(w, "%s\n", ev.Text)
					case live.EventCritical:
						fmt.Fprintf(w, "\n!!! LIVE CRITICAL DISPATCH !!!\n%s\n\n", ev.Text)
					case live.EventError:
						return goerr.New(ev.Text)
					}
				}
			}
		},
	}
}
