package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ralphorch/ralph/internal/domain"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "run", Short: "Manage runs"}
	cmd.AddCommand(runStartCmd())
	cmd.AddCommand(runControlCmd("pause"))
	cmd.AddCommand(runControlCmd("resume"))
	cmd.AddCommand(runControlCmd("stop"))
	cmd.AddCommand(runControlCmd("retry"))
	cmd.AddCommand(runListCmd())
	return cmd
}

func runStartCmd() *cobra.Command {
	var threadID string
	var maxIterations int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Queue a new run on a thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tid := domain.ThreadID(threadID)
			if _, err := a.Store.GetThread(tid); err != nil {
				return err
			}

			run := &domain.Run{
				ID:            domain.RunID(uuid.NewString()),
				ThreadID:      tid,
				Status:        domain.RunQueued,
				MaxIterations: maxIterations,
				CreatedAt:     time.Now().UTC(),
			}
			if err := a.Store.CreateRun(run); err != nil {
				return err
			}
			a.AppendEvent(context.Background(), tid, run.ID, domain.EventRunQueued, nil)
			a.Queue.Enqueue(run.ID)

			return printJSONOrTable(run)
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 10, "maximum iterations before giving up")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}

// runControlCmd builds `ralphd run pause|resume|stop|retry <run-id>`.
func runControlCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <run-id>",
		Short: fmt.Sprintf("%s a run", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			runID := domain.RunID(args[0])
			var ok bool
			switch action {
			case "pause":
				ok = a.Queue.Pause(runID)
			case "resume":
				ok = a.Queue.Resume(runID)
			case "stop":
				ok = a.Queue.Stop(runID)
			case "retry":
				run, err := a.Store.GetRun(runID)
				if err != nil {
					return err
				}
				if !run.IsTerminal() {
					return fmt.Errorf("run %s is not terminal, cannot retry", runID)
				}
				retry := &domain.Run{
					ID:            domain.RunID(uuid.NewString()),
					ThreadID:      run.ThreadID,
					Status:        domain.RunQueued,
					MaxIterations: run.MaxIterations,
					TaskOverride:  run.TaskOverride,
					SourceRunID:   run.ID,
					CreatedAt:     time.Now().UTC(),
				}
				if err := a.Store.CreateRun(retry); err != nil {
					return err
				}
				a.AppendEvent(context.Background(), retry.ThreadID, retry.ID, domain.EventRunQueued, map[string]any{"retryOf": run.ID})
				a.Queue.Enqueue(retry.ID)
				return printJSONOrTable(retry)
			}
			if !ok {
				return fmt.Errorf("run %s cannot be %sd from its current status", runID, action)
			}
			run, err := a.Store.GetRun(runID)
			if err != nil {
				return err
			}
			return printJSONOrTable(run)
		},
	}
}

func runListCmd() *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs for a thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.Store.ListRunsByThread(domain.ThreadID(threadID))
			if err != nil {
				return err
			}

			if viper.GetBool("json") {
				return printJSONOrTable(runs)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Status", "Iterations", "Max", "Error"})
			for _, r := range runs {
				tw.AppendRow(table.Row{r.ID, r.Status, r.Iterations, r.MaxIterations, r.Error})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}
