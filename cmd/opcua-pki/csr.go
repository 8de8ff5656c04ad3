package main

import (
	"crypto/x509/pkix"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systerel/s2opc-go/pkg/keymanager"
)

var csrCmd = &cobra.Command{
	Use:   "csr",
	Short: "Build certificate signing requests",
}

var csrCreateCmd = &cobra.Command{
	Use:   "create KEY OUTPUT",
	Short: "Build a CSR for an application instance certificate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyFile, out := args[0], args[1]
		commonName, _ := cmd.Flags().GetString("common-name")
		org, _ := cmd.Flags().GetString("organization")
		appURI, _ := cmd.Flags().GetString("app-uri")
		hosts, _ := cmd.Flags().GetStringSlice("hosts")
		hashAlg, _ := cmd.Flags().GetString("hash")
		password, _ := cmd.Flags().GetString("password")
		server, _ := cmd.Flags().GetBool("server")

		if appURI == "" {
			return fmt.Errorf("--app-uri is required")
		}
		if len(hosts) == 0 {
			return fmt.Errorf("at least one --hosts entry is required")
		}

		buf, err := os.ReadFile(keyFile)
		if err != nil {
			return fmt.Errorf("read key file: %w", err)
		}
		var k *keymanager.Key
		if password != "" {
			k, err = keymanager.DecryptRSAPrivateKeyPEM(buf, password)
		} else {
			k, err = keymanager.ParsePrivateKeyPEM(buf)
		}
		if err != nil {
			return fmt.Errorf("load key: %w", err)
		}

		req := keymanager.CSRRequest{
			Subject: pkix.Name{
				CommonName:   commonName,
				Organization: []string{org},
			},
			HashAlgorithm:  hashAlg,
			IsServer:       server,
			ApplicationURI: appURI,
			DNSNames:       hosts,
			Key:            k,
		}
		der, err := keymanager.BuildCSR(req)
		if err != nil {
			return fmt.Errorf("build csr: %w", err)
		}

		pemBytes := pemEncode("CERTIFICATE REQUEST", der)
		if err := os.WriteFile(out, pemBytes, 0o644); err != nil {
			return fmt.Errorf("write csr file: %w", err)
		}

		fmt.Printf("CSR written to %s\n", out)
		fmt.Printf("  Common Name: %s\n", commonName)
		fmt.Printf("  Application URI: %s\n", appURI)
		fmt.Printf("  Hosts: %v\n", hosts)
		return nil
	},
}

func init() {
	csrCreateCmd.Flags().String("common-name", "", "Subject common name (required)")
	csrCreateCmd.Flags().String("organization", "", "Subject organization")
	csrCreateCmd.Flags().String("app-uri", "", "OPC UA ApplicationURI for the subjectAltName (required)")
	csrCreateCmd.Flags().StringSlice("hosts", nil, "DNS names for the subjectAltName (required)")
	csrCreateCmd.Flags().String("hash", "sha256", "Signature hash algorithm (sha1, sha224, sha256, sha384, sha512)")
	csrCreateCmd.Flags().String("password", "", "Password if the key file is encrypted")
	csrCreateCmd.Flags().Bool("server", true, "Request serverAuth EKU instead of clientAuth")
	csrCreateCmd.MarkFlagRequired("common-name")
	csrCreateCmd.MarkFlagRequired("app-uri")
	csrCreateCmd.MarkFlagRequired("hosts")

	csrCmd.AddCommand(csrCreateCmd)
}
