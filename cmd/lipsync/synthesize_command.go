package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lipsync/internal/fileutil"
	"lipsync/internal/logging"
	"lipsync/internal/pipeline"
	"lipsync/internal/services/process"
	"lipsync/internal/workflow"
)

func newSynthesizeCommand(ctx *commandContext) *cobra.Command {
	var (
		segmentSeconds float64
		output         string
		workers        int
		jobID          string
	)

	cmd := &cobra.Command{
		Use:   "synthesize VIDEO AUDIO",
		Short: "Run one lip-sync conversion in this process",
		Long: "Stage VIDEO and AUDIO, split both into --segment-length second chunks (0 disables\n" +
			"splitting), run inference per chunk, and join the clips into one video.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("segment-length") {
				segmentSeconds = cfg.Inference.DefaultSegmentSeconds
			}
			if cmd.Flags().Changed("workers") {
				cfg.Inference.Workers = workers
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			runner := process.NewLocalRunner(process.WithLogger(logging.NewComponentLogger(logger, "process")))
			driver, err := pipeline.NewFromConfig(cfg, runner, logger)
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runSynthesize(runCtx, cmd.OutOrStdout(), driver, pipeline.Request{
				JobID:          jobID,
				SegmentSeconds: segmentSeconds,
				VideoPath:      args[0],
				AudioPath:      args[1],
			}, output)
		},
	}

	cmd.Flags().Float64VarP(&segmentSeconds, "segment-length", "l", 0, "Chunk length in seconds; 0 disables splitting (default inference.default_segment_seconds)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Copy the final video to this path")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Concurrent inference invocations (default inference.workers)")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Request ID for the workspace and output name (default: random UUID)")
	return cmd
}

func runSynthesize(ctx context.Context, out io.Writer, conv workflow.Converter, req pipeline.Request, output string) error {
	progress := pipeline.ObserverFuncs{
		OnState: func(jobID string, state pipeline.State) {
			fmt.Fprintf(out, "[%s] %s\n", jobID, state)
		},
		OnSegment: func(jobID string, done, total int) {
			fmt.Fprintf(out, "[%s] inferring %d/%d\n", jobID, done, total)
		},
	}

	res, err := conv.Convert(ctx, req, progress)
	if err != nil {
		return err
	}
	if res.Truncated {
		fmt.Fprintf(out, "warning: %d video and %d audio segments; the last %d were dropped\n",
			res.VideoSegments, res.AudioSegments, max(res.VideoSegments, res.AudioSegments)-res.Segments)
	}

	final := res.OutputPath
	if output != "" {
		target, err := filepath.Abs(output)
		if err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
		if _, err := fileutil.CopyFile(ctx, res.OutputPath, target); err != nil {
			return fmt.Errorf("copy output: %w", err)
		}
		final = target
	}
	fmt.Fprintf(out, "Output: %s (%d segments, %s)\n", final, res.Segments, res.Elapsed.Round(time.Millisecond))
	return nil
}
