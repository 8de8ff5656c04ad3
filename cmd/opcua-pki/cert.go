package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/systerel/s2opc-go/pkg/keymanager"
)

var certCmd = &cobra.Command{
	Use:     "cert",
	Aliases: []string{"certificate", "certs"},
	Short:   "Inspect certificates",
}

var certInspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Inspect a DER or PEM certificate file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		certs, err := loadCertsFromFile(args[0])
		if err != nil {
			return err
		}

		for i, cert := range certs {
			if i > 0 {
				fmt.Println(strings.Repeat("-", 40))
			}
			printCertificate(cert)
		}
		return nil
	},
}

func loadCertsFromFile(path string) ([]*keymanager.Certificate, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate file: %w", err)
	}
	if certs, err := keymanager.ParseCertificatePEM(buf); err == nil {
		return certs, nil
	}
	cert, err := keymanager.ParseCertificateDER(buf)
	if err != nil {
		return nil, fmt.Errorf("parse certificate file: %w", err)
	}
	return []*keymanager.Certificate{cert}, nil
}

func printCertificate(cert *keymanager.Certificate) {
	fmt.Printf("Subject: %s\n", cert.Parsed.Subject)
	fmt.Printf("Issuer: %s\n", cert.Parsed.Issuer)
	fmt.Printf("Thumbprint: %s\n", cert.Thumbprint())
	fmt.Printf("Self-signed: %v\n", cert.IsSelfSigned())
	fmt.Printf("CA: %v\n", cert.IsCA())
	fmt.Printf("Valid from: %s\n", cert.Parsed.NotBefore.Format(time.RFC3339))
	fmt.Printf("Valid until: %s\n", cert.Parsed.NotAfter.Format(time.RFC3339))
	sans := keymanager.ExtractSubjectAltNames(cert)
	if sans.ApplicationURI != "" {
		fmt.Printf("Application URI: %s\n", sans.ApplicationURI)
	}
	if len(sans.DNSNames) > 0 {
		fmt.Printf("DNS names: %v\n", sans.DNSNames)
	}
}

func init() {
	certCmd.AddCommand(certInspectCmd)
}
