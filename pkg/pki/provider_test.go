package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/systerel/s2opc-go/pkg/keymanager"
	"github.com/systerel/s2opc-go/pkg/profile"
	"github.com/systerel/s2opc-go/pkg/types"
)

func generateCA(t *testing.T, cn string) (*keymanager.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := keymanager.ParseCertificateDER(der)
	require.NoError(t, err)
	return cert, key
}

func generateLeaf(t *testing.T, ca *keymanager.Certificate, caKey *rsa.PrivateKey, cn string) *keymanager.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Parsed, &key.PublicKey, caKey)
	require.NoError(t, err)
	cert, err := keymanager.ParseCertificateDER(der)
	require.NoError(t, err)
	return cert
}

func crlFor(t *testing.T, ca *keymanager.Certificate, caKey *rsa.PrivateKey, revoked ...*keymanager.Certificate) *keymanager.CRL {
	t.Helper()
	var entries []x509.RevocationListEntry
	for _, c := range revoked {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   c.Parsed.SerialNumber,
			RevocationTime: time.Now().Add(-time.Minute),
		})
	}
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(1),
		ThisUpdate:                time.Now().Add(-time.Hour),
		NextUpdate:                time.Now().Add(24 * time.Hour),
		RevokedCertificateEntries: entries,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, ca.Parsed, caKey)
	require.NoError(t, err)
	crl, err := keymanager.ParseCRLDER(der)
	require.NoError(t, err)
	return crl
}

func TestEmptyTrustSetRejectsAllChains(t *testing.T) {
	// Only issuer CAs, no trusted certificates: construction succeeds
	// but every validation fails untrusted rather than silently
	// accepting.
	issuerCA, issuerKey := generateCA(t, "issuer-only")
	leaf := generateLeaf(t, issuerCA, issuerKey, "leaf")
	issuerChain, err := keymanager.NewCertificateChain(issuerCA)
	require.NoError(t, err)

	p, err := NewProvider(Options{IssuerCerts: issuerChain})
	require.NoError(t, err)

	err = p.Validate(leaf, profile.Profile{})
	require.Error(t, err)
	var coded *types.CodedError
	require.ErrorAs(t, err, &coded)
	require.Equal(t, types.StatusBadUntrusted, coded.Code)
	require.Len(t, p.Rejected(), 1)
}

func TestNewProviderAllowsEmptyTrustSetWhenPermissive(t *testing.T) {
	p, err := NewProvider(Options{Permissive: true})
	require.NoError(t, err)
	require.True(t, p.Permissive())
}

func TestValidateAcceptsLeafSignedByTrustedRoot(t *testing.T) {
	ca, caKey := generateCA(t, "root")
	leaf := generateLeaf(t, ca, caKey, "leaf")
	caChain, err := keymanager.NewCertificateChain(ca)
	require.NoError(t, err)

	crls := keymanager.NewCRLChain()
	require.NoError(t, crls.Append(crlFor(t, ca, caKey)))

	p, err := NewProvider(Options{TrustedCerts: caChain, TrustedCRLs: crls})
	require.NoError(t, err)

	err = p.Validate(leaf, profile.Profile{})
	require.NoError(t, err)
	require.Empty(t, p.Rejected())
}

func TestValidateRejectsUntrustedLeaf(t *testing.T) {
	ca, caKey := generateCA(t, "root")
	leaf := generateLeaf(t, ca, caKey, "leaf")
	otherCA, _ := generateCA(t, "other-root")
	otherChain, err := keymanager.NewCertificateChain(otherCA)
	require.NoError(t, err)

	p, err := NewProvider(Options{TrustedCerts: otherChain})
	require.NoError(t, err)

	err = p.Validate(leaf, profile.Profile{})
	require.Error(t, err)
	require.Len(t, p.Rejected(), 1)
}

func TestValidateRejectsWithoutCRLWhenRevocationEnabled(t *testing.T) {
	ca, caKey := generateCA(t, "root")
	trustedChain, err := keymanager.NewCertificateChain(ca)
	require.NoError(t, err)

	intermediate, intermediateKey := generateCA(t, "intermediate")
	intermediateDER, err := x509.CreateCertificate(rand.Reader, intermediate.Parsed, ca.Parsed, intermediate.Parsed.PublicKey, caKey)
	require.NoError(t, err)
	intermediateCert, err := keymanager.ParseCertificateDER(intermediateDER)
	require.NoError(t, err)
	leafUnderIntermediate := generateLeaf(t, intermediateCert, intermediateKey, "leaf2")

	p, err := NewProvider(Options{TrustedCerts: trustedChain})
	require.NoError(t, err)
	require.NoError(t, p.Update(UpdateBuffers{IssuerCerts: mustChainT(t, intermediateCert)}, true))

	err = p.Validate(leafUnderIntermediate, profile.Profile{})
	require.Error(t, err)

	trustedCRLs := keymanager.NewCRLChain()
	require.NoError(t, trustedCRLs.Append(crlFor(t, ca, caKey)))
	issuerCRLs := keymanager.NewCRLChain()
	require.NoError(t, issuerCRLs.Append(crlFor(t, intermediateCert, intermediateKey)))
	require.NoError(t, p.Update(UpdateBuffers{
		TrustedCRLs: trustedCRLs,
		IssuerCRLs:  issuerCRLs,
		IssuerCerts: mustChainT(t, intermediateCert),
	}, true))

	err = p.Validate(leafUnderIntermediate, profile.Profile{})
	require.NoError(t, err)
}

func mustChainT(t *testing.T, certs ...*keymanager.Certificate) *keymanager.CertificateChain {
	t.Helper()
	chain, err := keymanager.NewCertificateChain(certs...)
	require.NoError(t, err)
	return chain
}

func TestRejectedListBound(t *testing.T) {
	ca, _ := generateCA(t, "root")
	chain, err := keymanager.NewCertificateChain(ca)
	require.NoError(t, err)
	p, err := NewProvider(Options{TrustedCerts: chain, MaxRejected: 2})
	require.NoError(t, err)

	otherCA, otherKey := generateCA(t, "other")
	for i := 0; i < 5; i++ {
		leaf := generateLeaf(t, otherCA, otherKey, "leaf")
		_ = p.Validate(leaf, profile.Profile{})
	}
	require.Len(t, p.Rejected(), 2)
}

func TestValidateRejectsRevokedLeaf(t *testing.T) {
	ca, caKey := generateCA(t, "root")
	leaf := generateLeaf(t, ca, caKey, "leaf")
	caChain := mustChainT(t, ca)
	crls := keymanager.NewCRLChain()
	require.NoError(t, crls.Append(crlFor(t, ca, caKey, leaf)))

	p, err := NewProvider(Options{TrustedCerts: caChain, TrustedCRLs: crls})
	require.NoError(t, err)

	err = p.Validate(leaf, profile.Profile{})
	require.Error(t, err)
	var coded *types.CodedError
	require.ErrorAs(t, err, &coded)
	require.Equal(t, types.StatusBadRevoked, coded.Code)
}

func TestMissingCRLReturnsRevocationUnknownAndDeduplicates(t *testing.T) {
	ca, caKey := generateCA(t, "root")
	leaf := generateLeaf(t, ca, caKey, "leaf")
	caChain := mustChainT(t, ca)

	p, err := NewProvider(Options{TrustedCerts: caChain})
	require.NoError(t, err)

	err = p.Validate(leaf, profile.Profile{})
	require.Error(t, err)
	var coded *types.CodedError
	require.ErrorAs(t, err, &coded)
	require.Equal(t, types.StatusBadRevocationUnknown, coded.Code)
	require.Len(t, p.Rejected(), 1)

	// Repeating the same validation leaves the rejected list unchanged.
	err = p.Validate(leaf, profile.Profile{})
	require.Error(t, err)
	require.Len(t, p.Rejected(), 1)
}

func TestDisableRevocationCheckSkipsCRLRequirement(t *testing.T) {
	ca, caKey := generateCA(t, "root")
	leaf := generateLeaf(t, ca, caKey, "leaf")
	caChain := mustChainT(t, ca)

	p, err := NewProvider(Options{TrustedCerts: caChain})
	require.NoError(t, err)

	prof := profile.Profile{Chain: profile.ChainProfile{DisableRevocationCheck: true}}
	require.NoError(t, p.Validate(leaf, prof))
}

func TestValidateSuccessRemovesRejectedEntry(t *testing.T) {
	ca, caKey := generateCA(t, "root")
	leaf := generateLeaf(t, ca, caKey, "leaf")
	caChain := mustChainT(t, ca)

	p, err := NewProvider(Options{TrustedCerts: caChain})
	require.NoError(t, err)

	require.Error(t, p.Validate(leaf, profile.Profile{}))
	require.Len(t, p.Rejected(), 1)

	crls := keymanager.NewCRLChain()
	require.NoError(t, crls.Append(crlFor(t, ca, caKey)))
	require.NoError(t, p.Update(UpdateBuffers{TrustedCerts: caChain, TrustedCRLs: crls}, false))

	require.NoError(t, p.Validate(leaf, profile.Profile{}))
	require.Empty(t, p.Rejected())
}

func TestChainProfileMinimumKeySizeEnforced(t *testing.T) {
	ca, caKey := generateCA(t, "root")
	leaf := generateLeaf(t, ca, caKey, "leaf")
	caChain := mustChainT(t, ca)
	crls := keymanager.NewCRLChain()
	require.NoError(t, crls.Append(crlFor(t, ca, caKey)))

	p, err := NewProvider(Options{TrustedCerts: caChain, TrustedCRLs: crls})
	require.NoError(t, err)

	prof := profile.Profile{Chain: profile.ChainProfile{MinimumRSAKeySizeBits: 4096}}
	err = p.Validate(leaf, prof)
	require.Error(t, err)
	var coded *types.CodedError
	require.ErrorAs(t, err, &coded)
	require.Equal(t, types.StatusBadInvalid, coded.Code)

	prof.Chain.MinimumRSAKeySizeBits = 2048
	require.NoError(t, p.Validate(leaf, prof))
}

func TestSetPermissiveIsSticky(t *testing.T) {
	ca, _ := generateCA(t, "root")
	chain, err := keymanager.NewCertificateChain(ca)
	require.NoError(t, err)
	p, err := NewProvider(Options{TrustedCerts: chain})
	require.NoError(t, err)
	require.False(t, p.Permissive())
	p.SetPermissive()
	require.True(t, p.Permissive())
}
