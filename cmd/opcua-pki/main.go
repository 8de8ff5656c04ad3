package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systerel/s2opc-go/pkg/obslog"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "opcua-pki",
	Short: "opcua-pki manages keys, certificates, and the trust store for an OPC UA stack",
	Long: `opcua-pki generates RSA keys and certificate signing requests,
encrypts private keys for storage, and maintains the on-disk trust
list consumed by the PKI provider (trusted/issuer certificates and
CRLs).`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"opcua-pki version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(csrCmd)
	rootCmd.AddCommand(trustCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	obslog.Init(obslog.Config{
		Level:      obslog.Level(logLevel),
		JSONOutput: logJSON,
	})
}
