package pki

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systerel/s2opc-go/pkg/keymanager"
)

func TestSaveAndLoadStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	ca, caKey := generateCA(t, "store-root")
	caChain := mustChainT(t, ca)
	crls := keymanager.NewCRLChain()
	require.NoError(t, crls.Append(crlFor(t, ca, caKey)))

	p, err := NewProvider(Options{TrustedCerts: caChain, TrustedCRLs: crls, StoreRoot: root})
	require.NoError(t, err)
	require.NoError(t, p.SaveToStore(false))

	// Certificates and CRLs land thumbprint-named under the primary
	// layout.
	certPath := filepath.Join(root, "trusted", "certs", ca.Thumbprint()+".der")
	written, err := os.ReadFile(certPath)
	require.NoError(t, err)
	require.Equal(t, ca.DER, written)
	_, err = os.Stat(filepath.Join(root, "trusted", "crl"))
	require.NoError(t, err)

	loaded, err := NewProviderFromStore(root, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, loaded.TrustedCertCount())
	require.Equal(t, 1, loaded.TrustedCRLCount())
}

func TestLoadPrefersUpdatedTrustListShadow(t *testing.T) {
	root := t.TempDir()
	primaryCA, primaryKey := generateCA(t, "primary")
	updatedCA, updatedKey := generateCA(t, "updated")

	p, err := NewProvider(Options{
		TrustedCerts: mustChainT(t, primaryCA),
		TrustedCRLs:  crlChainT(t, crlFor(t, primaryCA, primaryKey)),
		StoreRoot:    root,
	})
	require.NoError(t, err)
	require.NoError(t, p.SaveToStore(false))

	shadow, err := NewProvider(Options{
		TrustedCerts: mustChainT(t, updatedCA),
		TrustedCRLs:  crlChainT(t, crlFor(t, updatedCA, updatedKey)),
		StoreRoot:    filepath.Join(root, "updatedTrustList"),
	})
	require.NoError(t, err)
	require.NoError(t, shadow.SaveToStore(false))

	loaded, err := NewProviderFromStore(root, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, loaded.TrustedCertCount())
	cert := loaded.TrustedCerts().FindByThumbprint(updatedCA.Thumbprint())
	require.NotNil(t, cert)
}

func TestLoadFallsBackToPrimaryWhenShadowAbsent(t *testing.T) {
	root := t.TempDir()
	ca, caKey := generateCA(t, "primary-only")
	p, err := NewProvider(Options{
		TrustedCerts: mustChainT(t, ca),
		TrustedCRLs:  crlChainT(t, crlFor(t, ca, caKey)),
		StoreRoot:    root,
	})
	require.NoError(t, err)
	require.NoError(t, p.SaveToStore(false))

	loaded, err := NewProviderFromStore(root, Options{})
	require.NoError(t, err)
	require.NotNil(t, loaded.TrustedCerts().FindByThumbprint(ca.Thumbprint()))
}

func TestSaveEraseExistingRemovesStaleFiles(t *testing.T) {
	root := t.TempDir()
	certsDir := filepath.Join(root, "trusted", "certs")
	require.NoError(t, os.MkdirAll(certsDir, 0o755))
	stale := filepath.Join(certsDir, "STALE.der")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	ca, caKey := generateCA(t, "fresh")
	p, err := NewProvider(Options{
		TrustedCerts: mustChainT(t, ca),
		TrustedCRLs:  crlChainT(t, crlFor(t, ca, caKey)),
		StoreRoot:    root,
	})
	require.NoError(t, err)
	require.NoError(t, p.SaveToStore(true))

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(certsDir, ca.Thumbprint()+".der"))
	require.NoError(t, err)
}

func crlChainT(t *testing.T, crls ...*keymanager.CRL) *keymanager.CRLChain {
	t.Helper()
	chain := keymanager.NewCRLChain()
	for _, c := range crls {
		require.NoError(t, chain.Append(c))
	}
	return chain
}
