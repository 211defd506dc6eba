package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/vetscan/vetscan/pkg/adapter"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/usecase/analyze"
)

// frameWarmup bounds how long scan waits for the first rendered frame
const frameWarmup = 5 * time.Second

func scanCommand() *cli.Command {
	var (
		cfg       config
		inputPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Analyze a JPEG file instead of capturing from the camera",
			Sources:     cli.EnvVars("VETSCAN_INPUT"),
			Destination: &inputPath,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, captureFlags(&cfg)...)
	flags = append(flags, locationFlags(&cfg)...)

	return &cli.Command{
		Name:  "scan",
		Usage: "Capture one frame and run a diagnostic analysis",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			image, err := readScanImage(ctx, &cfg, inputPath)
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

			uc, err := analyze.New(gemini)
			if err != nil {
				return err
			}

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " Analyzing..."
			sp.Start()
			result, err := uc.Analyze(ctx, image, cfg.location())
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "analysis failed, please try again")
			}

			// Two-step protocol: persist only after a successful analysis
			if _, err := repo.Append(ctx, result); err != nil {
				return goerr.Wrap(err, "failed to record result")
			}

			printResult(c, result)
			return nil
		},
	}
}

// readScanImage loads the input file, or captures a single frame from
// the camera when no input is given. The device is always released,
// whichever path returns.
func readScanImage(ctx context.Context, cfg *config, inputPath string) ([]byte, error) {
	if inputPath != "" {
		image, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read input image", goerr.V("path", inputPath))
		}
		return image, nil
	}

	camera := cfg.newCamera()
	if err := camera.Open(ctx); err != nil {
		return nil, goerr.Wrap(err, "camera access denied or unavailable, check the device and retry")
	}
	defer camera.Close()

	return waitFrame(ctx, camera, frameWarmup)
}

// waitFrame polls until the device renders its first frame
func waitFrame(ctx context.Context, camera adapter.Camera, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		frame, err := camera.CaptureFrame()
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, model.ErrNotReady) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, goerr.Wrap(model.ErrNotReady, "no frame within warmup window")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func printResult(c *cli.Command, result *model.AnalysisResult) {
	w := c.Root().Writer

	fmt.Fprintf(w, "Result ID:  %s\n", result.ID)
	fmt.Fprintf(w, "Species:    %s\n", result.Species)
	fmt.Fprintf(w, "Severity:   %s (confidence %.2f)\n", result.Severity, result.OverallConfidenceScore)
	fmt.Fprintf(w, "Diagnosis:  %s\n", result.MedicalDetails.PrimaryDiagnosis)
	if len(result.MedicalDetails.DifferentialDiagnoses) > 0 {
		fmt.Fprintf(w, "Differential: %s\n", strings.Join(result.MedicalDetails.DifferentialDiagnoses, ", "))
	}
	fmt.Fprintf(w, "Condition:  %s\n", result.PhysicalCondition)
	fmt.Fprintf(w, "Contagion:  %s\n", result.MedicalDetails.ContagionRisk)
	fmt.Fprintf(w, "Prognosis:  %s\n", result.MedicalDetails.Prognosis)
	fmt.Fprintf(w, "First aid:  %s\n", result.FirstAid)

	if len(result.MedicalDetails.UrgentActions) > 0 {
		fmt.Fprintln(w, "Urgent actions:")
		for _, action := range result.MedicalDetails.UrgentActions {
			fmt.Fprintf(w, "  - %s\n", action)
		}
	}
	if result.RescueRequired {
		fmt.Fprintln(w, "RESCUE REQUIRED")
		if result.NearestAuthority != "" {
			fmt.Fprintf(w, "Nearest authority: %s\n", result.NearestAuthority)
		}
	}
	for _, link := range result.GroundingLinks {
		fmt.Fprintf(w, "Source: %s <%s>\n", link.Title, link.URI)
	}
}
