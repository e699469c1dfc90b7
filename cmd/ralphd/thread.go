package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ralphorch/ralph/internal/agent"
	"github.com/ralphorch/ralph/internal/domain"
)

func threadCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "thread", Short: "Manage threads"}
	cmd.AddCommand(threadCreateCmd())
	cmd.AddCommand(threadListCmd())
	return cmd
}

func threadCreateCmd() *cobra.Command {
	var name, task, repoPath, agentName, validate string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a thread and its worktree",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if agentName == "" {
				agentName = a.Config.Agent.Name
			}
			if _, err := agent.Get(agentName); err != nil {
				return fmt.Errorf("agent must be one of %v, got %q", agent.Names(), agentName)
			}

			id := domain.ThreadID(uuid.NewString())
			result, err := a.Worktree.Create(repoPath, id)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			thread := &domain.Thread{
				ID:           id,
				Name:         name,
				Task:         task,
				RepoPath:     result.RepoRoot,
				WorktreePath: result.WorktreePath,
				BranchName:   result.BranchName,
				Agent:        agentName,
				ValidateCmds: splitCommands(validate),
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := a.Store.CreateThread(thread); err != nil {
				return err
			}
			a.AppendEvent(context.Background(), thread.ID, "", domain.EventThreadCreated, map[string]any{"name": thread.Name})
			a.AppendEvent(context.Background(), thread.ID, "", domain.EventThreadWorktreeCreated, map[string]any{"worktreePath": thread.WorktreePath})

			return printJSONOrTable(thread)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "thread name")
	cmd.Flags().StringVar(&task, "task", "", "task description")
	cmd.Flags().StringVar(&repoPath, "repo", ".", "repository path")
	cmd.Flags().StringVar(&agentName, "agent", "", "agent CLI to use (default from config)")
	cmd.Flags().StringVar(&validate, "validate", "", "comma-separated validation commands")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func threadListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			threads, err := a.Store.ListThreads()
			if err != nil {
				return err
			}

			if viper.GetBool("json") {
				return printJSONOrTable(threads)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "Agent", "Worktree", "Created"})
			for _, t := range threads {
				tw.AppendRow(table.Row{t.ID, t.Name, t.Agent, t.WorktreePath, t.CreatedAt.Format(time.RFC3339)})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func splitCommands(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
