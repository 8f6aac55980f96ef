package main

import (
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/college-map/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeConfig(os.Stdout, cfg)
	},
}

const redacted = "********"

// writeConfig prints c with secrets masked.
func writeConfig(out io.Writer, c *config.Config) error {
	shown := *c
	if shown.Census.APIKey != "" {
		shown.Census.APIKey = redacted
	}
	if u, err := url.Parse(shown.Store.DatabaseURL); err == nil && u.User != nil {
		shown.Store.DatabaseURL = u.Redacted()
	}
	if shown.Cache.RedisPassword != "" {
		shown.Cache.RedisPassword = redacted
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(shown); err != nil {
		return eris.Wrap(err, "config show: encode")
	}
	return eris.Wrap(enc.Close(), "config show: flush")
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
