package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/partitiond/pkg/log"
	"github.com/cuemby/partitiond/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storage manager with metrics and health endpoints",
	Long: `Serve initializes the DB Manager, opens every database named by
--open, starts the metrics Collector on its 15s ticker, and exposes
/metrics, /health, /ready, and /live until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		opens, _ := cmd.Flags().GetStringSlice("open")

		mgr, err := loadManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		metrics.RegisterComponent("storage_manager", true, "initialized")

		for _, name := range opens {
			if _, err := mgr.OpenDB(name); err != nil {
				metrics.RegisterComponent(name, false, err.Error())
				return fmt.Errorf("failed to open %q: %w", name, err)
			}
			metrics.RegisterComponent(name, true, "open")
		}

		collector := metrics.NewCollector(mgr)
		collector.Start()
		defer collector.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())

		errCh := make(chan error, 1)
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
		fmt.Printf("✓ Health endpoints: http://%s/{health,ready,live}\n", metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
			return err
		}

		log.WithComponent("serve").Info().Msg("storage manager stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
	serveCmd.Flags().StringSlice("open", nil, "Databases to open at startup")
	rootCmd.AddCommand(serveCmd)
}
