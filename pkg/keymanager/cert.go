package keymanager

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/systerel/s2opc-go/pkg/types"
)

// Certificate is one record in a CertificateChain: the raw DER plus
// its parsed view. CertificateChain models the collection as a
// growable, index-addressed sequence rather than an owning linked
// list, so a caller's handle stays valid across mutations.
type Certificate struct {
	DER    []byte
	Parsed *x509.Certificate
}

// IsSelfSigned reports whether the certificate's issuer and subject DN
// match and its own signature verifies under its own public key.
func (c *Certificate) IsSelfSigned() bool {
	if c.Parsed == nil {
		return false
	}
	if c.Parsed.Subject.String() != c.Parsed.Issuer.String() {
		return false
	}
	return c.Parsed.CheckSignatureFrom(c.Parsed) == nil
}

// IsCA reports whether the basic-constraints CA flag is set.
func (c *Certificate) IsCA() bool { return c.Parsed != nil && c.Parsed.IsCA }

// Thumbprint returns the SHA-1 thumbprint of the raw DER.
func (c *Certificate) Thumbprint() string { return ThumbprintHex(c.DER) }

// Equal reports whether two certificates carry byte-identical DER,
// the comparison used for duplicate rejection and trust matching
func (c *Certificate) Equal(o *Certificate) bool {
	if c == nil || o == nil {
		return c == o
	}
	return bytes.Equal(c.DER, o.DER)
}

// ParseCertificateDER parses a single DER-encoded certificate. DER
// length must fit a 32-bit value; larger buffers are
// rejected as invalid argument rather than truncated.
func ParseCertificateDER(der []byte) (*Certificate, error) {
	if len(der) == 0 {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("empty certificate DER"))
	}
	if uint64(len(der)) > 1<<32-1 {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("certificate DER too large"))
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalid, fmt.Errorf("parse certificate der: %w", err))
	}
	return &Certificate{DER: der, Parsed: parsed}, nil
}

// ParseCertificatePEM parses one or more concatenated PEM-encoded
// certificates.
func ParseCertificatePEM(buf []byte) ([]*Certificate, error) {
	var out []*Certificate
	rest := buf
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := ParseCertificateDER(block.Bytes)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	if len(out) == 0 {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("no certificate found in PEM buffer"))
	}
	return out, nil
}

// ParseCertificateFile loads certificates from a DER or PEM file,
// detecting the format from content rather than extension.
func ParseCertificateFile(path string) ([]*Certificate, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("read certificate file: %w", err))
	}
	if block, _ := pem.Decode(buf); block != nil {
		return ParseCertificatePEM(buf)
	}
	cert, err := ParseCertificateDER(buf)
	if err != nil {
		return nil, err
	}
	return []*Certificate{cert}, nil
}

// CertificateChain is an ordered sequence of certificate records.
// Duplicate DER is rejected on Append.
type CertificateChain struct {
	certs []*Certificate
}

// NewCertificateChain builds a chain from zero or more certificates,
// validating the no-duplicate invariant.
func NewCertificateChain(certs ...*Certificate) (*CertificateChain, error) {
	chain := &CertificateChain{}
	for _, c := range certs {
		if err := chain.Append(c); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// Append adds cert to the chain, rejecting byte-identical duplicates.
func (l *CertificateChain) Append(cert *Certificate) error {
	if cert == nil {
		return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("nil certificate"))
	}
	for _, existing := range l.certs {
		if existing.Equal(cert) {
			return types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("duplicate certificate %s", cert.Thumbprint()))
		}
	}
	l.certs = append(l.certs, cert)
	return nil
}

// Certs returns the chain's certificates in insertion order. The
// returned slice must not be mutated by the caller.
func (l *CertificateChain) Certs() []*Certificate {
	if l == nil {
		return nil
	}
	return l.certs
}

// Len reports the number of certificates in the chain.
func (l *CertificateChain) Len() int {
	if l == nil {
		return 0
	}
	return len(l.certs)
}

// FindByThumbprint returns the certificate whose SHA-1 thumbprint
// matches, or nil.
func (l *CertificateChain) FindByThumbprint(thumbprint string) *Certificate {
	for _, c := range l.certs {
		if c.Thumbprint() == thumbprint {
			return c
		}
	}
	return nil
}

// ContainsEqual reports whether the chain holds a byte-identical
// certificate to cert.
func (l *CertificateChain) ContainsEqual(cert *Certificate) bool {
	for _, c := range l.certs {
		if c.Equal(cert) {
			return true
		}
	}
	return false
}

// Union returns a new chain containing the certificates of l followed
// by those of other that are not already present (by DER equality),
// used to build derived sets like pki.all_roots / pki.all_certs
func (l *CertificateChain) Union(other *CertificateChain) *CertificateChain {
	out := &CertificateChain{}
	out.certs = append(out.certs, l.Certs()...)
	for _, c := range other.Certs() {
		if !out.ContainsEqual(c) {
			out.certs = append(out.certs, c)
		}
	}
	return out
}

// Pool builds an *x509.CertPool from the chain, for use with the
// standard library path verifier.
func (l *CertificateChain) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	for _, c := range l.certs {
		pool.AddCert(c.Parsed)
	}
	return pool
}
