package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/ralphorch/ralph/internal/app"
	"github.com/ralphorch/ralph/internal/config"
)

// loadApp resolves the config file (persistent --config flag, falling back
// to the default path) and wires a fresh App against it.
func loadApp() (*app.App, error) {
	path := viper.GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return app.New(cfg)
}

// printJSONOrTable prints v as indented JSON when --json is set; callers
// that want a table instead check viper.GetBool("json") themselves and
// fall through to this for the JSON branch.
func printJSONOrTable(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
