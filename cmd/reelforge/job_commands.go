package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var projectFlag string
	var tierFlag string
	var payloadFlag string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a render job",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ctx.owner()
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd.InOrStdin(), payloadFlag)
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				job, err := svc.Enqueue(cmd.Context(), api.EnqueueRequest{
					OwnerID:     owner,
					ProjectID:   projectFlag,
					QualityTier: tierFlag,
					Payload:     payload,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job %d\n", job.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&projectFlag, "project", "p", "", "Project identity")
	cmd.Flags().StringVarP(&tierFlag, "tier", "t", "standard", "Quality tier (draft, standard, premium)")
	cmd.Flags().StringVar(&payloadFlag, "payload", "", "Path to a job payload JSON file (- for stdin)")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's state and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ctx.owner()
			if err != nil {
				return err
			}
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				job, err := svc.Status(cmd.Context(), owner, id)
				if err != nil {
					return err
				}
				printJobStatus(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job that has not started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ctx.owner()
			if err != nil {
				return err
			}
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				cancelled, err := svc.Cancel(cmd.Context(), owner, id)
				if err != nil {
					return err
				}
				if !cancelled {
					return fmt.Errorf("job %d could not be cancelled (already started, finished, or not yours)", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %d\n", id)
				return nil
			})
		},
	}
}

func newPositionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "position <job-id>",
		Short: "Show a pending job's place in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ctx.owner()
			if err != nil {
				return err
			}
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				position, err := svc.Position(cmd.Context(), owner, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d is number %d in the queue\n", id, position)
				return nil
			})
		},
	}
}

func parseJobID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", value)
	}
	return id, nil
}

func readPayload(stdin io.Reader, flagValue string) (*queue.JobData, error) {
	flagValue = strings.TrimSpace(flagValue)
	if flagValue == "" {
		return nil, fmt.Errorf("--payload is required")
	}

	var raw []byte
	var err error
	if flagValue == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(flagValue)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	data, err := queue.ParseJobData(raw)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func printJobStatus(out io.Writer, job *api.JobStatus) {
	colorize := shouldColorize(out)

	rows := [][]string{
		{"ID", strconv.FormatInt(job.ID, 10)},
		{"Project", job.ProjectID},
		{"Status", colorizeStatus(string(job.Status), colorize)},
		{"Tier", string(job.QualityTier)},
		{"Progress", formatProgress(job.Progress)},
		{"Created", job.CreatedAt.Format(time.RFC3339)},
	}
	if job.StartedAt != nil {
		rows = append(rows, []string{"Started", job.StartedAt.Format(time.RFC3339)})
	}
	if job.CompletedAt != nil {
		rows = append(rows, []string{"Completed", job.CompletedAt.Format(time.RFC3339)})
	}
	if job.ResultRef != "" {
		label := "Result"
		if job.ResultPending {
			label = "Result (pending, re-poll)"
		}
		rows = append(rows, []string{label, job.ResultRef})
	}
	if job.ErrorMessage != "" {
		rows = append(rows, []string{"Error", job.ErrorMessage})
	}

	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
}

func formatProgress(p api.Progress) string {
	if p.Total <= 0 {
		if p.Message != "" {
			return p.Message
		}
		return "-"
	}
	if p.Message != "" {
		return fmt.Sprintf("%d/%d %s", p.Current, p.Total, p.Message)
	}
	return fmt.Sprintf("%d/%d", p.Current, p.Total)
}
