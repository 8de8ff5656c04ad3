package profile

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"net/url"
	"strings"

	"github.com/systerel/s2opc-go/pkg/keymanager"
	"github.com/systerel/s2opc-go/pkg/types"
)

// CheckSecurityPolicy verifies the leaf's public key algorithm and RSA
// key size fall within the profile's bounds. When
// ApplySecurityPolicy is false the check is skipped entirely.
func (p LeafProfile) CheckSecurityPolicy(cert *keymanager.Certificate) error {
	if !p.ApplySecurityPolicy {
		return nil
	}
	pub, ok := cert.Parsed.PublicKey.(*rsa.PublicKey)
	if !ok {
		if p.PublicKeyAlgorithm == PKAny {
			return nil
		}
		return types.NewError(types.StatusBadInvalid, fmt.Errorf("leaf public key is not RSA"))
	}
	bits := pub.N.BitLen()
	if p.MinimumRSAKeySizeBits > 0 && bits < p.MinimumRSAKeySizeBits {
		return types.NewError(types.StatusBadInvalid,
			fmt.Errorf("rsa key size %d below minimum %d", bits, p.MinimumRSAKeySizeBits))
	}
	if p.MaximumRSAKeySizeBits > 0 && bits > p.MaximumRSAKeySizeBits {
		return types.NewError(types.StatusBadInvalid,
			fmt.Errorf("rsa key size %d above maximum %d", bits, p.MaximumRSAKeySizeBits))
	}
	if len(p.AllowedHashes) > 0 && !hashAllowed(cert.Parsed.SignatureAlgorithm, p.AllowedHashes) {
		return types.NewError(types.StatusBadInvalid,
			fmt.Errorf("signature algorithm %s not in allowed set", cert.Parsed.SignatureAlgorithm))
	}
	return nil
}

func hashAllowed(alg x509.SignatureAlgorithm, allowed []x509.SignatureAlgorithm) bool {
	for _, a := range allowed {
		if a == alg {
			return true
		}
	}
	return false
}

// CheckKeyUsage verifies the leaf's KeyUsage and ExtendedKeyUsage bits
// are a superset of the profile's requirements, honoring the
// DisableCheck wildcard.
func (p LeafProfile) CheckKeyUsage(cert *keymanager.Certificate) error {
	have := keyUsageMaskFromX509(cert.Parsed.KeyUsage)
	if !KeyUsageSatisfies(p.KeyUsage, have) {
		return types.NewError(types.StatusBadUseNotAllowed,
			fmt.Errorf("certificate key usage does not satisfy required mask"))
	}
	haveEKU := extKeyUsageMaskFromX509(cert.Parsed.ExtKeyUsage)
	if !ExtKeyUsageSatisfies(p.ExtendedKeyUsage, haveEKU) {
		return types.NewError(types.StatusBadUseNotAllowed,
			fmt.Errorf("certificate extended key usage does not satisfy required mask"))
	}
	return nil
}

func keyUsageMaskFromX509(ku x509.KeyUsage) KeyUsageMask {
	var m KeyUsageMask
	if ku&x509.KeyUsageDigitalSignature != 0 {
		m |= KeyUsageDigitalSignature
	}
	if ku&x509.KeyUsageContentCommitment != 0 {
		m |= KeyUsageNonRepudiation
	}
	if ku&x509.KeyUsageKeyEncipherment != 0 {
		m |= KeyUsageKeyEncipherment
	}
	if ku&x509.KeyUsageDataEncipherment != 0 {
		m |= KeyUsageDataEncipherment
	}
	if ku&x509.KeyUsageKeyAgreement != 0 {
		m |= KeyUsageKeyAgreement
	}
	if ku&x509.KeyUsageCertSign != 0 {
		m |= KeyUsageKeyCertSign
	}
	if ku&x509.KeyUsageCRLSign != 0 {
		m |= KeyUsageCRLSign
	}
	return m
}

func extKeyUsageMaskFromX509(eku []x509.ExtKeyUsage) ExtKeyUsageMask {
	var m ExtKeyUsageMask
	for _, u := range eku {
		switch u {
		case x509.ExtKeyUsageServerAuth:
			m |= ExtKeyUsageServerAuth
		case x509.ExtKeyUsageClientAuth:
			m |= ExtKeyUsageClientAuth
		}
	}
	return m
}

// CheckApplicationURI compares the leaf's subjectAltName ApplicationUri
// (a URI-type GeneralName) byte-for-byte against the expected value.
// An empty ExpectedApplicationURI disables the check.
func (p LeafProfile) CheckApplicationURI(cert *keymanager.Certificate) error {
	if p.ExpectedApplicationURI == "" {
		return nil
	}
	san := keymanager.ExtractSubjectAltNames(cert)
	if san.ApplicationURI != p.ExpectedApplicationURI {
		return types.NewError(types.StatusBadUriInvalid,
			fmt.Errorf("certificate ApplicationUri %q does not match expected %q", san.ApplicationURI, p.ExpectedApplicationURI))
	}
	return nil
}

// CheckHostname splits ExpectedHostnameURL into host[:port], and scans
// the leaf's dNSName SAN entries case-insensitively for a match. An
// empty ExpectedHostnameURL disables the check.
func (p LeafProfile) CheckHostname(cert *keymanager.Certificate) error {
	if p.ExpectedHostnameURL == "" {
		return nil
	}
	host := p.ExpectedHostnameURL
	if u, err := url.Parse(p.ExpectedHostnameURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	} else if h, _, splitErr := splitHostPort(p.ExpectedHostnameURL); splitErr == nil {
		host = h
	}
	san := keymanager.ExtractSubjectAltNames(cert)
	for _, name := range san.DNSNames {
		if strings.EqualFold(name, host) {
			return nil
		}
	}
	return types.NewError(types.StatusBadHostNameInvalid,
		fmt.Errorf("certificate has no dNSName SAN matching host %q", host))
}

func splitHostPort(s string) (string, string, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return s, "", nil
	}
	return s[:idx], s[idx+1:], nil
}

// commonNameOID is id-at-commonName, 2.5.4.3.
var commonNameOID = asn1.ObjectIdentifier{2, 5, 4, 3}

// CheckCommonName enforces the CN presence rule: a missing CN
// attribute is an error, an empty-but-present CN is tolerated (the
// caller may choose to log it as a warning). Subject.Names carries
// every parsed attribute, so the scan matches on the CN OID rather
// than testing for any attribute at all.
func (p LeafProfile) CheckCommonName(cert *keymanager.Certificate) error {
	for _, attr := range cert.Parsed.Subject.Names {
		if attr.Type.Equal(commonNameOID) {
			return nil
		}
	}
	return types.NewError(types.StatusBadInvalid, fmt.Errorf("certificate subject has no common name attribute"))
}

// ValidateLeaf runs every enabled leaf check in a fixed order,
// returning the first failure. Callers that need every failure should
// call the individual Check* methods directly instead;
// pki.Provider.VerifyEveryCertificate goes through ValidateLeaf and so
// reports only the first failing leaf check of each certificate.
func (p LeafProfile) ValidateLeaf(cert *keymanager.Certificate) error {
	if err := p.CheckSecurityPolicy(cert); err != nil {
		return err
	}
	if err := p.CheckKeyUsage(cert); err != nil {
		return err
	}
	if err := p.CheckApplicationURI(cert); err != nil {
		return err
	}
	if err := p.CheckHostname(cert); err != nil {
		return err
	}
	return p.CheckCommonName(cert)
}
