package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lipsync/internal/api"
	"lipsync/internal/fileutil"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "Inspect and manage daemon jobs",
	}
	jobsCmd.AddCommand(newJobsSubmitCommand(ctx))
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))
	jobsCmd.AddCommand(newJobsDownloadCommand(ctx))
	jobsCmd.AddCommand(newJobsWatchCommand(ctx))
	return jobsCmd
}

func newJobsSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		segmentSeconds float64
		upload         bool
		wait           bool
	)
	cmd := &cobra.Command{
		Use:   "submit VIDEO AUDIO",
		Short: "Queue a conversion on the daemon",
		Long: "Queue VIDEO and AUDIO for conversion. By default the daemon reads the files from\n" +
			"its own filesystem; --upload streams them instead.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			var job api.Job
			if upload {
				seconds := -1.0
				if cmd.Flags().Changed("segment-length") {
					seconds = segmentSeconds
				}
				job, err = client.Upload(cmd.Context(), args[0], args[1], seconds)
			} else {
				req := api.SubmitRequest{VideoPath: absPath(args[0]), AudioPath: absPath(args[1])}
				if cmd.Flags().Changed("segment-length") {
					req.SegmentLength = &segmentSeconds
				}
				job, err = client.Submit(cmd.Context(), req)
			}
			if err != nil {
				return wrapAPIError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued job %s (segment length %s)\n", job.ID, formatSeconds(job.SegmentSeconds))
			if !wait {
				return nil
			}
			return watchJob(cmd.Context(), client, out, job.ID)
		},
	}
	cmd.Flags().Float64VarP(&segmentSeconds, "segment-length", "l", 0, "Chunk length in seconds; 0 disables splitting (default inference.default_segment_seconds)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the files instead of passing host paths")
	cmd.Flags().BoolVar(&wait, "wait", false, "Stream progress until the job finishes")
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			jobs, err := client.List(cmd.Context(), statuses...)
			if err != nil {
				return wrapAPIError(err)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderJobsTable(jobs))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func renderJobsTable(jobs []api.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		progress := "-"
		if job.Progress.Total > 0 {
			progress = fmt.Sprintf("%d/%d", job.Progress.Done, job.Progress.Total)
		}
		rows = append(rows, []string{
			job.ID,
			job.Status,
			job.Progress.Stage,
			progress,
			formatSeconds(job.SegmentSeconds),
			filepath.Base(job.VideoPath),
			filepath.Base(job.AudioPath),
			job.CreatedAt,
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Stage", "Segments", "Length", "Video", "Audio", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			job, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return wrapAPIError(err)
			}
			writeJobDetails(cmd.OutOrStdout(), job)
			return nil
		},
	}
}

func writeJobDetails(out io.Writer, job api.Job) {
	field := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(out, "%-16s %s\n", label+":", value)
		}
	}
	field("ID", job.ID)
	field("Status", job.Status)
	field("Stage", job.Progress.Stage)
	if job.Progress.Total > 0 {
		field("Segments", fmt.Sprintf("%d/%d (%.0f%%)", job.Progress.Done, job.Progress.Total, job.Progress.Percent))
	}
	field("Segment length", formatSeconds(job.SegmentSeconds))
	field("Video", job.VideoPath)
	field("Audio", job.AudioPath)
	if job.Truncated {
		field("Truncated", fmt.Sprintf("yes (%d video / %d audio segments)", job.VideoSegments, job.AudioSegments))
	}
	field("Output", job.OutputPath)
	if job.ErrorMessage != "" {
		field("Error", fmt.Sprintf("[%s] %s", job.ErrorKind, job.ErrorMessage))
	}
	field("Created", job.CreatedAt)
	field("Started", job.StartedAt)
	field("Finished", job.FinishedAt)
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID...",
		Aliases: []string{"rm"},
		Short:   "Delete jobs, canceling running ones",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var errs []error
			for _, id := range args {
				res, err := client.Remove(cmd.Context(), id)
				switch {
				case api.IsNotFound(err):
					fmt.Fprintf(out, "Job %s not found\n", id)
				case err != nil:
					errs = append(errs, fmt.Errorf("remove %s: %w", id, wrapAPIError(err)))
				case res.Canceled:
					fmt.Fprintf(out, "Canceled and removed job %s\n", id)
				default:
					fmt.Fprintf(out, "Removed job %s\n", id)
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newJobsDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download ID DEST",
		Short: "Download a completed job's video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			dest := absPath(args[1])
			n, err := downloadTo(cmd.Context(), client, args[0], dest)
			if err != nil {
				return wrapAPIError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", n, dest)
			return nil
		},
	}
}

// downloadTo streams the output into dest atomically so a failed transfer
// never leaves a truncated file behind.
func downloadTo(ctx context.Context, client *api.Client, id, dest string) (int64, error) {
	pr, pw := io.Pipe()
	go func() {
		_, err := client.Download(ctx, id, pw)
		pw.CloseWithError(err)
	}()
	n, err := fileutil.WriteFileAtomic(ctx, dest, pr, 0o644)
	pr.Close()
	return n, err
}

func newJobsWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ID",
		Short: "Stream a job's progress until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			return watchJob(cmd.Context(), client, cmd.OutOrStdout(), args[0])
		},
	}
}

func watchJob(ctx context.Context, client *api.Client, out io.Writer, id string) error {
	var last api.Event
	err := client.Watch(ctx, id, func(evt api.Event) error {
		last = evt
		if evt.Total > 0 {
			fmt.Fprintf(out, "%s %d/%d\n", evt.State, evt.Done, evt.Total)
		} else {
			fmt.Fprintln(out, evt.State)
		}
		return nil
	})
	if err != nil {
		return wrapAPIError(err)
	}
	switch {
	case last.State == "done":
		fmt.Fprintf(out, "Output: %s\n", last.Message)
		return nil
	case last.Terminal:
		return fmt.Errorf("job %s %s: [%s] %s", id, last.State, last.ErrorKind, last.Message)
	default:
		return nil
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func formatSeconds(seconds float64) string {
	if seconds == 0 {
		return "whole"
	}
	return strconv.FormatFloat(seconds, 'f', -1, 64) + "s"
}
