package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systerel/s2opc-go/pkg/keymanager"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Generate and encrypt RSA keys",
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate OUTPUT",
	Short: "Generate a new RSA key pair and write it as PEM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := args[0]
		bits, _ := cmd.Flags().GetInt("bits")
		password, _ := cmd.Flags().GetString("password")

		k, err := keymanager.GenerateRSAKey(bits, nil)
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}

		var pemBytes []byte
		if password != "" {
			pemBytes, err = keymanager.EncryptRSAPrivateKeyPEM(k, password)
		} else {
			pemBytes, err = keymanager.EncodePrivateKeyPlainPEM(k)
		}
		if err != nil {
			return fmt.Errorf("encode key: %w", err)
		}

		if err := os.WriteFile(out, pemBytes, 0o600); err != nil {
			return fmt.Errorf("write key file: %w", err)
		}

		fmt.Printf("Generated %d-bit RSA key: %s\n", bits, out)
		if password != "" {
			fmt.Println("  Encrypted with the supplied password")
		}
		return nil
	},
}

var keyEncryptCmd = &cobra.Command{
	Use:   "encrypt INPUT OUTPUT",
	Short: "Encrypt an existing plaintext RSA private key PEM file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := args[0], args[1]
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			return fmt.Errorf("--password is required")
		}

		buf, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("read key file: %w", err)
		}
		k, err := keymanager.ParsePrivateKeyPEM(buf)
		if err != nil {
			return fmt.Errorf("parse key file: %w", err)
		}

		encrypted, err := keymanager.EncryptRSAPrivateKeyPEM(k, password)
		if err != nil {
			return fmt.Errorf("encrypt key: %w", err)
		}
		if err := os.WriteFile(out, encrypted, 0o600); err != nil {
			return fmt.Errorf("write key file: %w", err)
		}

		fmt.Printf("Encrypted key written to %s\n", out)
		return nil
	},
}

func init() {
	keyGenerateCmd.Flags().Int("bits", 2048, "RSA key size in bits")
	keyGenerateCmd.Flags().String("password", "", "Encrypt the private key with this password (plaintext if empty)")

	keyEncryptCmd.Flags().String("password", "", "Password to encrypt the key with (required)")
	keyEncryptCmd.MarkFlagRequired("password")

	keyCmd.AddCommand(keyGenerateCmd)
	keyCmd.AddCommand(keyEncryptCmd)
}
