package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ralphorch/ralph/internal/automation"
	"github.com/ralphorch/ralph/internal/domain"
)

func automationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "automation", Short: "Manage recurring triggers"}
	cmd.AddCommand(automationCreateCmd())
	cmd.AddCommand(automationListCmd())
	cmd.AddCommand(automationToggleCmd())
	cmd.AddCommand(automationRunNowCmd())
	return cmd
}

func automationCreateCmd() *cobra.Command {
	var name, cron, threadID string
	var maxIterations int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recurring trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := automation.ValidateExpr(cron); err != nil {
				return err
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tid := domain.ThreadID(threadID)
			if _, err := a.Store.GetThread(tid); err != nil {
				return err
			}

			auto := &domain.Automation{
				ID:            domain.AutomationID(uuid.NewString()),
				Name:          name,
				Cron:          cron,
				ThreadID:      tid,
				MaxIterations: maxIterations,
				Enabled:       true,
				CreatedAt:     time.Now().UTC(),
			}
			if err := a.Store.CreateAutomation(auto); err != nil {
				return err
			}
			a.AppendEvent(context.Background(), tid, "", domain.EventAutomationCreated, map[string]any{"automationId": auto.ID, "cron": auto.Cron})

			return printJSONOrTable(auto)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "automation name")
	cmd.Flags().StringVar(&cron, "cron", "", `cron expression ("minute hour day month weekday", literals or '*' only)`)
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id to trigger runs on")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 10, "maximum iterations per triggered run")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("cron")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}

func automationListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurring triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			automations, err := a.Store.ListAutomations()
			if err != nil {
				return err
			}

			if viper.GetBool("json") {
				return printJSONOrTable(automations)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "Cron", "Thread", "Enabled", "Last Triggered"})
			for _, au := range automations {
				lastTriggered := ""
				if !au.LastTriggered.IsZero() {
					lastTriggered = au.LastTriggered.Format(time.RFC3339)
				}
				tw.AppendRow(table.Row{au.ID, au.Name, au.Cron, au.ThreadID, au.Enabled, lastTriggered})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func automationToggleCmd() *cobra.Command {
	var enabled bool
	cmd := &cobra.Command{
		Use:   "toggle <automation-id>",
		Short: "Enable or disable a recurring trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id := domain.AutomationID(args[0])
			if err := a.Store.SetAutomationEnabled(id, enabled); err != nil {
				return err
			}
			au, err := a.Store.GetAutomation(id)
			if err != nil {
				return err
			}
			return printJSONOrTable(au)
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", true, "whether the trigger is enabled")
	return cmd
}

func automationRunNowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-now <automation-id>",
		Short: "Trigger a recurring trigger immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			au, err := a.Store.GetAutomation(domain.AutomationID(args[0]))
			if err != nil {
				return err
			}
			runID, err := a.Scheduler.TriggerNow(au)
			if err != nil {
				return err
			}
			run, err := a.Store.GetRun(runID)
			if err != nil {
				return err
			}
			return printJSONOrTable(run)
		},
	}
	return cmd
}
