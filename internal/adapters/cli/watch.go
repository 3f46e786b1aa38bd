package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print note changes made by any client until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Events == nil {
				return domain.WrapError(domain.ErrNetworkUnavailable, "watch notes", errors.New("no event bus configured (set NOTEPEEL_NATS_URL)"))
			}
			addr := app.Config.MetricsAddr
			if cmd.Flags().Changed("metrics-addr") {
				addr = metricsAddr
			}

			ctx := cmd.Context()
			if addr != "" {
				stop, err := serveMetrics(ctx, addr, app.Metrics.Handler())
				if err != nil {
					return err
				}
				defer stop()
				fmt.Fprintf(cmd.ErrOrStderr(), "Metrics on http://%s/metrics\n", addr)
			}

			out := cmd.OutOrStdout()
			return app.Events.SubscribeNoteEvents(ctx, func(_ context.Context, event domain.NoteEvent) error {
				app.Metrics.RecordNoteEvent(string(event.Type))
				fmt.Fprintf(out, "%s  %-13s  note %d  %s\n", event.At.Local().Format(time.TimeOnly), event.Type, event.NoteID, event.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (empty disables)")
	return cmd
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = server.Serve(listener)
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}
