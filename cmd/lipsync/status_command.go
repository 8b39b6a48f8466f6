package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"lipsync/internal/api"
	"lipsync/internal/deps"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			status, err := client.Status(cmd.Context())
			if err != nil {
				if !api.IsUnavailable(err) {
					return err
				}
				fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
				fmt.Fprintln(out, renderDependencyTable(localDependencies(deps.Check(cfg))))
				return nil
			}
			writeDaemonStatus(out, status, colorize)
			return nil
		},
	}
}

func writeDaemonStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "stopped", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Queue database", statusInfo, status.QueueDBPath, colorize))
	fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))

	wf := status.Workflow
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Workflow", colorize))
	if len(wf.ActiveJobs) > 0 {
		fmt.Fprintln(out, renderStatusLine("Active", statusInfo, strings.Join(wf.ActiveJobs, ", "), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Active", statusInfo, "idle", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Queue", statusInfo, formatQueueStats(wf.QueueStats), colorize))
	if wf.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, wf.LastError, colorize))
	}
	if wf.LastJob != nil {
		kind := statusOK
		if wf.LastJob.Status != "completed" {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Last job", kind, wf.LastJob.ID+" "+wf.LastJob.Status, colorize))
	}

	if len(wf.StageHealth) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderSectionHeader("Stages", colorize))
		for _, stage := range wf.StageHealth {
			kind := statusOK
			if !stage.Ready {
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine(stage.Name, kind, stage.Detail, colorize))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
	fmt.Fprintln(out, renderDependencyTable(status.Dependencies))
}

// formatQueueStats renders counts in a stable order with empty buckets omitted.
func formatQueueStats(stats map[string]int) string {
	order := []string{"pending", "processing", "completed", "failed", "canceled"}
	parts := make([]string, 0, len(stats))
	seen := make(map[string]bool, len(order))
	for _, key := range order {
		seen[key] = true
		if stats[key] > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", key, stats[key]))
		}
	}
	var extra []string
	for key, count := range stats {
		if !seen[key] && count > 0 {
			extra = append(extra, fmt.Sprintf("%s %d", key, count))
		}
	}
	sort.Strings(extra)
	parts = append(parts, extra...)
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, ", ")
}

func localDependencies(statuses []deps.Status) []api.DependencyStatus {
	out := make([]api.DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, api.DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

func renderDependencyTable(statuses []api.DependencyStatus) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "ok"
		if !s.Available {
			state = "missing"
			if s.Optional {
				state = "missing (optional)"
			}
		}
		rows = append(rows, []string{s.Name, s.Command, state, s.Detail})
	}
	return renderTable([]string{"Dependency", "Command", "State", "Detail"}, rows, nil)
}
