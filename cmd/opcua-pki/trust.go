package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systerel/s2opc-go/pkg/pki"
	"github.com/systerel/s2opc-go/pkg/profile"
)

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Maintain the on-disk trust store",
}

var trustLoadCmd = &cobra.Command{
	Use:   "load ROOT",
	Short: "Load a trust store and report what was found",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProvider(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("trusted certificates: %d\n", p.TrustedCertCount())
		fmt.Printf("trusted CRLs: %d\n", p.TrustedCRLCount())
		fmt.Printf("issuer certificates: %d\n", p.IssuerCertCount())
		fmt.Printf("issuer CRLs: %d\n", p.IssuerCRLCount())
		return nil
	},
}

var trustSaveCmd = &cobra.Command{
	Use:   "save ROOT",
	Short: "Re-save an already-loaded trust store's layout (rewrites thumbprint filenames)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		erase, _ := cmd.Flags().GetBool("erase-existing")
		p, err := openProvider(args[0])
		if err != nil {
			return err
		}
		if err := p.SaveToStore(erase); err != nil {
			return fmt.Errorf("save trust store: %w", err)
		}
		fmt.Printf("trust store saved under %s\n", args[0])
		return nil
	},
}

var trustValidateCmd = &cobra.Command{
	Use:   "validate ROOT FILE",
	Short: "Validate a certificate file against the trust store at ROOT",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProvider(args[0])
		if err != nil {
			return err
		}
		certs, err := loadCertsFromFile(args[1])
		if err != nil {
			return err
		}
		prof := profile.Profile{
			Chain: profile.ChainProfile{MinimumRSAKeySizeBits: 2048},
		}
		for _, cert := range certs {
			if err := p.Validate(cert, prof); err != nil {
				fmt.Printf("%s: REJECTED (%v)\n", cert.Thumbprint(), err)
				continue
			}
			fmt.Printf("%s: OK\n", cert.Thumbprint())
		}
		return nil
	},
}

var trustRejectedCmd = &cobra.Command{
	Use:   "rejected ROOT",
	Short: "List the rejected-certificate list of a provider opened on ROOT (rejections are not stored on disk, so a freshly opened store lists none)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProvider(args[0])
		if err != nil {
			return err
		}
		rejected := p.Rejected()
		if len(rejected) == 0 {
			fmt.Println("rejected list is empty")
			return nil
		}
		for _, cert := range rejected {
			fmt.Printf("%s  %s\n", cert.Thumbprint(), cert.Parsed.Subject)
		}
		return nil
	},
}

// openProvider opens the trust store at root, constructing a Provider
// from whatever certificates and CRLs are already on disk.
func openProvider(root string) (*pki.Provider, error) {
	p, err := pki.NewProviderFromStore(root, pki.Options{})
	if err != nil {
		return nil, fmt.Errorf("open trust store: %w", err)
	}
	return p, nil
}

func init() {
	trustSaveCmd.Flags().Bool("erase-existing", false, "Remove existing files in each leaf directory before writing")

	trustCmd.AddCommand(trustLoadCmd)
	trustCmd.AddCommand(trustSaveCmd)
	trustCmd.AddCommand(trustValidateCmd)
	trustCmd.AddCommand(trustRejectedCmd)
}
