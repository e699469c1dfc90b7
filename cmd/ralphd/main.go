// Command ralphd is Ralph's CLI: it starts the HTTP+WebSocket control
// plane and manages threads, runs, automations, and review comments
// against the same embedded database the server uses.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "ralphd",
	Short: "Ralph drives AI coding agents through iterative self-correcting loops",
	Long: `Ralph runs an AI coding agent against a task in a dedicated git worktree,
repeatedly validating its work and looping until validation passes or the
iteration budget runs out. Threads hold the task and worktree; runs are
individual attempts; automations trigger runs on a schedule.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RALPHD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default ~/.config/ralph/config.toml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON instead of a table")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(threadCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(automationCmd())
	rootCmd.AddCommand(commentCmd())
}
