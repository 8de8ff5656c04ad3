package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/systerel/s2opc-go/pkg/metrics"
	"github.com/systerel/s2opc-go/pkg/obslog"
)

var serveCmd = &cobra.Command{
	Use:   "serve ROOT",
	Short: "Serve metrics and health endpoints while watching a trust store",
	Long: `serve opens the trust store at ROOT, exposes Prometheus metrics and
health/readiness endpoints over HTTP, and reloads the store on an
interval so an updated trust list (including the updatedTrustList
shadow directory) is picked up without a restart.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		listen, _ := cmd.Flags().GetString("listen")
		reloadEvery, _ := cmd.Flags().GetDuration("reload-interval")

		health := metrics.NewHealthChecker(Version, "pki")

		p, err := openProvider(root)
		if err != nil {
			return err
		}
		health.Report("pki", true, "")
		metrics.TrustListReloadsTotal.Inc()

		collector := metrics.NewCollector(nil, nil, nil, p)
		collector.Start()
		defer collector.Stop()

		if reloadEvery > 0 {
			go func() {
				ticker := time.NewTicker(reloadEvery)
				defer ticker.Stop()
				for range ticker.C {
					if err := p.LoadFromStore(); err != nil {
						health.Report("pki", false, err.Error())
						obslog.Errorf("trust store reload failed", err)
						continue
					}
					health.Report("pki", true, "")
					metrics.TrustListReloadsTotal.Inc()
					logger := obslog.WithComponent("pki")
					logger.Info().Msg("trust store reloaded")
				}
			}()
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", health.HealthHandler())
		mux.HandleFunc("/readyz", health.ReadyHandler())
		mux.HandleFunc("/livez", health.LiveHandler())

		fmt.Printf("Serving metrics and health endpoints on %s (trust store: %s)\n", listen, root)
		return http.ListenAndServe(listen, mux)
	},
}

func init() {
	serveCmd.Flags().String("listen", ":9464", "Address to serve HTTP on")
	serveCmd.Flags().Duration("reload-interval", time.Minute, "Trust store reload interval (0 disables reloading)")
}
