package keymanager

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/systerel/s2opc-go/pkg/types"
)

// CRL is one certificate-revocation-list record: raw DER plus the
// parsed view (issuer, thisUpdate/nextUpdate, signature,
// revoked-serial set).
type CRL struct {
	DER    []byte
	Parsed *x509.RevocationList
}

// Thumbprint returns the SHA-1 thumbprint of the raw DER, the CRL's
// on-disk filename.
func (c *CRL) Thumbprint() string { return ThumbprintHex(c.DER) }

// Equal reports byte-identical DER.
func (c *CRL) Equal(o *CRL) bool {
	if c == nil || o == nil {
		return c == o
	}
	return bytes.Equal(c.DER, o.DER)
}

// IssuerMatches reports whether the CRL's issuer DN equals the given
// certificate's subject DN, the binding the chain walk requires of
// every CA's revocation data.
func (c *CRL) IssuerMatches(ca *Certificate) bool {
	if c.Parsed == nil || ca.Parsed == nil {
		return false
	}
	return c.Parsed.Issuer.String() == ca.Parsed.Subject.String()
}

// VerifySignature checks the CRL's signature against the issuing CA's
// public key.
func (c *CRL) VerifySignature(ca *Certificate) error {
	if c.Parsed == nil || ca.Parsed == nil {
		return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("nil crl or certificate"))
	}
	if err := c.Parsed.CheckSignatureFrom(ca.Parsed); err != nil {
		return types.NewError(types.StatusBadRevocationUnknown, fmt.Errorf("crl signature verification: %w", err))
	}
	return nil
}

// RevokesSerial reports whether the CRL lists serial as revoked.
func (c *CRL) RevokesSerial(serial []byte) bool {
	if c.Parsed == nil {
		return false
	}
	for _, entry := range c.Parsed.RevokedCertificateEntries {
		if entry.SerialNumber != nil && bytes.Equal(entry.SerialNumber.Bytes(), serial) {
			return true
		}
	}
	return false
}

// ParseCRLDER parses a single DER-encoded CRL.
func ParseCRLDER(der []byte) (*CRL, error) {
	if len(der) == 0 {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("empty crl der"))
	}
	parsed, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("parse crl der: %w", err))
	}
	return &CRL{DER: der, Parsed: parsed}, nil
}

// ParseCRLFile loads a CRL from a DER or PEM file. PEM input is
// decoded with encoding/pem, which also accepts a file whose END line
// has no trailing newline.
func ParseCRLFile(path string) (*CRL, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("read crl file: %w", err))
	}
	if block, _ := pem.Decode(buf); block != nil {
		return ParseCRLDER(block.Bytes)
	}
	return ParseCRLDER(buf)
}

// CRLChain is an ordered sequence of CRL records, mirroring
// CertificateChain's shape.
type CRLChain struct {
	crls []*CRL
}

// NewCRLChain builds a chain from zero or more CRLs.
func NewCRLChain(crls ...*CRL) *CRLChain {
	return &CRLChain{crls: append([]*CRL(nil), crls...)}
}

// Append adds a CRL to the chain.
func (l *CRLChain) Append(crl *CRL) error {
	if crl == nil {
		return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("nil crl"))
	}
	l.crls = append(l.crls, crl)
	return nil
}

// CRLs returns the chain's entries in insertion order.
func (l *CRLChain) CRLs() []*CRL {
	if l == nil {
		return nil
	}
	return l.crls
}

// Len reports the number of CRLs in the chain.
func (l *CRLChain) Len() int {
	if l == nil {
		return 0
	}
	return len(l.crls)
}

// Union returns a new chain with l's entries followed by other's
// entries not already present by DER equality.
func (l *CRLChain) Union(other *CRLChain) *CRLChain {
	out := &CRLChain{}
	out.crls = append(out.crls, l.CRLs()...)
outer:
	for _, c := range other.CRLs() {
		for _, existing := range out.crls {
			if existing.Equal(c) {
				continue outer
			}
		}
		out.crls = append(out.crls, c)
	}
	return out
}

// RevokesCertificate reports whether the chain holds a CRL issued and
// signed by ca that lists cert's serial number as revoked.
func (l *CRLChain) RevokesCertificate(cert, ca *Certificate) bool {
	if cert == nil || cert.Parsed == nil || cert.Parsed.SerialNumber == nil {
		return false
	}
	serial := cert.Parsed.SerialNumber.Bytes()
	for _, crl := range l.CRLs() {
		if crl.IssuerMatches(ca) && crl.VerifySignature(ca) == nil && crl.RevokesSerial(serial) {
			return true
		}
	}
	return false
}

// HasValidCRLFor reports whether the chain contains at least one CRL
// whose issuer DN equals ca's subject DN and whose signature verifies
// under ca's public key.
func (l *CRLChain) HasValidCRLFor(ca *Certificate) bool {
	for _, crl := range l.CRLs() {
		if crl.IssuerMatches(ca) && crl.VerifySignature(ca) == nil {
			return true
		}
	}
	return false
}
