package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ralphorch/ralph/internal/domain"
)

func commentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "comment", Short: "Manage review comments"}
	cmd.AddCommand(commentAddCmd())
	cmd.AddCommand(commentListCmd())
	return cmd
}

func commentAddCmd() *cobra.Command {
	var threadID, runID, filePath, body string
	var line int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Attach a review comment to a diff line",
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

			comment := &domain.ReviewComment{
				ID:        domain.CommentID(uuid.NewString()),
				ThreadID:  tid,
				RunID:     domain.RunID(runID),
				FilePath:  filePath,
				Line:      line,
				Body:      body,
				Status:    domain.CommentOpen,
				CreatedAt: time.Now().UTC(),
			}
			if err := a.Store.CreateReviewComment(comment); err != nil {
				return err
			}
			a.AppendEvent(context.Background(), tid, comment.RunID, domain.EventReviewCommentCreated, map[string]any{"filePath": filePath, "lineNumber": line})

			return printJSONOrTable(comment)
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id")
	cmd.Flags().StringVar(&runID, "run", "", "run id this comment reviews (optional)")
	cmd.Flags().StringVar(&filePath, "file", "", "file path")
	cmd.Flags().IntVar(&line, "line", 0, "1-based line number, new-side coordinates")
	cmd.Flags().StringVar(&body, "body", "", "comment text")
	_ = cmd.MarkFlagRequired("thread")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func commentListCmd() *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a thread's review comments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			comments, err := a.Store.ListReviewComments(domain.ThreadID(threadID))
			if err != nil {
				return err
			}

			if viper.GetBool("json") {
				return printJSONOrTable(comments)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "File", "Line", "Status", "Body"})
			for _, c := range comments {
				tw.AppendRow(table.Row{c.ID, c.FilePath, c.Line, c.Status, c.Body})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}
