package pki

import (
	"fmt"

	"github.com/systerel/s2opc-go/pkg/keymanager"
	"github.com/systerel/s2opc-go/pkg/profile"
)

// UpdateBuffers is a new trusted/issuer collection to apply to a
// Provider.
type UpdateBuffers struct {
	TrustedCerts *keymanager.CertificateChain
	TrustedCRLs  *keymanager.CRLChain
	IssuerCerts  *keymanager.CertificateChain
	IssuerCRLs   *keymanager.CRLChain
}

// Update replaces the provider's trusted and issuer sets with the
// buffers in u, or merges them with the existing sets when
// includeExisting is set. The new sets are assembled in full before
// the provider's internals are swapped, so no caller ever observes a
// partial mix of old and new material. Malformed input (duplicate
// DER) cannot reach this point: Append and NewCertificateChain reject
// it when the caller builds the buffers.
func (p *Provider) Update(u UpdateBuffers, includeExisting bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	newTrustedCerts := emptyCertChainIfNil(u.TrustedCerts)
	newTrustedCRLs := emptyCRLChainIfNil(u.TrustedCRLs)
	newIssuerCerts := emptyCertChainIfNil(u.IssuerCerts)
	newIssuerCRLs := emptyCRLChainIfNil(u.IssuerCRLs)

	if includeExisting {
		newTrustedCerts = newTrustedCerts.Union(p.trustedCerts)
		newTrustedCRLs = newTrustedCRLs.Union(p.trustedCRLs)
		newIssuerCerts = newIssuerCerts.Union(p.issuerCerts)
		newIssuerCRLs = newIssuerCRLs.Union(p.issuerCRLs)
	}

	p.trustedCerts = newTrustedCerts
	p.trustedCRLs = newTrustedCRLs
	p.issuerCerts = newIssuerCerts
	p.issuerCRLs = newIssuerCRLs
	p.recomputeUnions()
	return nil
}

// CertDiagnostic is one (error, thumbprint) pair from
// VerifyEveryCertificate.
type CertDiagnostic struct {
	Thumbprint string
	Err        error
}

// VerifyEveryCertificate walks all_certs ∪ all_roots and runs the
// chain algorithm against each with trust forced true (the "no
// trusted certificate seen" failure of Validate step 5 is skipped),
// collecting per-certificate diagnostics. It never mutates the
// rejected list.
func (p *Provider) VerifyEveryCertificate(prof profile.Profile) []CertDiagnostic {
	p.mu.Lock()
	universe := p.allCerts.Union(p.allRoots)
	p.mu.Unlock()

	var out []CertDiagnostic
	for _, cert := range universe.Certs() {
		if err := p.validateIgnoringTrust(cert, prof); err != nil {
			out = append(out, CertDiagnostic{Thumbprint: cert.Thumbprint(), Err: err})
		}
	}
	return out
}

// validateIgnoringTrust runs the same chain-verification steps as
// Validate but never fails for lack of a trusted certificate in the
// chain, and never touches the rejected list.
func (p *Provider) validateIgnoringTrust(cert *keymanager.Certificate, prof profile.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prof.ApplyLeafProfile {
		if err := prof.Leaf.ValidateLeaf(cert); err != nil {
			return err
		}
	}

	roots := p.allRoots
	if cert.IsSelfSigned() {
		roots = roots.Union(mustChain(cert))
	}
	opts := verifyOptionsFor(roots, p.allCerts)
	chains, err := cert.Parsed.Verify(opts)
	if err != nil {
		return err
	}
	if !prof.Chain.DisableRevocationCheck {
		for _, chain := range chains {
			for depth, c := range chain {
				if depth == 0 {
					continue
				}
				if !p.allCRLs.HasValidCRLFor(&keymanager.Certificate{DER: c.Raw, Parsed: c}) {
					return fmt.Errorf("no valid CRL found for intermediate %s", keymanager.ThumbprintHex(c.Raw))
				}
			}
		}
	}
	return nil
}
