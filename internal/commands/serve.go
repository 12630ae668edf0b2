// Copyright 2026 The Inkhost Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/inkhost/inkhost/internal/app"
	"github.com/inkhost/inkhost/internal/commands/shared"
	"github.com/inkhost/inkhost/internal/metrics"
)

// newServeCommand creates the 'serve' command.
func newServeCommand(opts *globalOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the execution host",
		Long: `Run the execution host: connect all configured servers, hot-reload
the configuration on change, and expose Prometheus metrics.

Examples:
  inkhost serve
  inkhost serve --metrics-addr :9180`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "127.0.0.1:9180", "metrics listen address (empty disables)")

	return cmd
}

func runServe(opts *globalOptions, metricsAddr string) error {
	logger := opts.logger()

	registry := prometheus.NewRegistry()
	reporter := metrics.NewReporter(registry)

	a, err := app.New(app.Options{
		ConfigPath:  opts.configPath,
		Logger:      logger,
		Notifier:    &shared.ConsoleNotifier{In: os.Stdin, Out: os.Stderr},
		Reporter:    reporter,
		WatchConfig: true,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	var metricsServer *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("inkhost serving", "servers", len(a.Config.Servers))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Fprintf(os.Stderr, "\n%s\n", shared.RenderLabel("received "+sig.String()+", shutting down"))

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}

	return nil
}
