// Package cli is the command-line shell over the notebook use cases.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/notepeel/internal/bootstrap"
	"github.com/kirillkom/notepeel/internal/config"
	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/observability/logging"
)

type rootOptions struct {
	configPath string
	apiURL     string
	logLevel   string
}

// NewRootCommand builds the full command tree. Each invocation opens its own
// app from the persisted session.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "notepeel",
		Short: "Sync handwritten notes with the NotePeel service",
		Long: `notepeel keeps a signed-in session, lists and edits your notes,
uploads new scans and runs text recognition on images.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default $NOTEPEEL_CONFIG)")
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "notes service base URL")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newListCmd(opts),
		newUploadCmd(opts),
		newShowCmd(opts),
		newEditCmd(opts),
		newRenameCmd(opts),
		newDeleteCmd(opts),
		newRerecognizeCmd(opts),
		newOCRCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", domain.UserMessage(err))
		return 1
	}
	return 0
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("NOTEPEEL_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return config.Config{}, err
	}
	if strings.TrimSpace(o.apiURL) != "" {
		cfg.APIURL = strings.TrimSpace(o.apiURL)
	}
	if strings.TrimSpace(o.logLevel) != "" {
		cfg.LogLevel = strings.TrimSpace(o.logLevel)
	}
	return cfg, nil
}

// openApp wires the app and restores any persisted session.
func (o *rootOptions) openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLoggerTo(cmd.ErrOrStderr(), "notepeel-cli", cfg.LogLevel)
	app, err := bootstrap.New(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, _, err := app.Sessions.Restore(cmd.Context()); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}
