// internal/cli/root.go
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"creator-match/internal/app"
	"creator-match/internal/common/config"
	"creator-match/internal/common/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	appOpts    []app.Option
}

// NewRootCommand builds the match-cli command tree. appOpts are passed to
// every engine the commands build.
func NewRootCommand(appOpts ...app.Option) *cobra.Command {
	opts := &rootOptions{appOpts: appOpts}

	root := &cobra.Command{
		Use:           "match-cli",
		Short:         "Run and inspect creator-store matching analyses",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: configs/config.yaml lookup)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(
		newRunCommand(opts),
		newProjectCommand(opts),
		newFingerprintCommand(),
		newGCCommand(opts),
	)
	return root
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromFile(o.configPath)
	}
	return config.Load()
}

func (o *rootOptions) logger() logger.Logger {
	return logger.NewStructured(o.logLevel, "console", "stderr")
}

func (o *rootOptions) buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, o.logger(), o.appOpts...)
}

func readJSON(path string, out interface{}) error {
	if path == "" {
		return fmt.Errorf("an input file is required")
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
