// Package pki implements the PKI Provider: owns the trusted and
// issuer certificate/CRL sets, validates a candidate leaf against a
// profile.Profile, maintains the bounded rejected-certificate list,
// and persists/loads the on-disk trust store.
package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/systerel/s2opc-go/pkg/audit"
	"github.com/systerel/s2opc-go/pkg/keymanager"
	"github.com/systerel/s2opc-go/pkg/obslog"
	"github.com/systerel/s2opc-go/pkg/profile"
	"github.com/systerel/s2opc-go/pkg/types"
)

// Options configures a new Provider.
type Options struct {
	TrustedCerts *keymanager.CertificateChain
	TrustedCRLs  *keymanager.CRLChain
	IssuerCerts  *keymanager.CertificateChain
	IssuerCRLs   *keymanager.CRLChain

	// MaxRejected bounds the rejected list. Defaults to 512.
	MaxRejected int

	// Permissive makes every Validate call succeed. Sticky: see
	// Provider.SetPermissive. Test fixture mode only, never production.
	Permissive bool

	// StoreRoot is the on-disk trust store root path. May be empty if
	// the provider is never persisted or reloaded.
	StoreRoot string

	// AuditLog optionally records every validation outcome. It is a
	// history sink, never the trust authority.
	AuditLog *audit.Log
}

const defaultMaxRejected = 512

// Provider owns the trust material and the validation algorithm. All
// mutation and validation acquire mu; acquisition is non-reentrant.
type Provider struct {
	mu sync.Mutex

	trustedCerts *keymanager.CertificateChain
	trustedCRLs  *keymanager.CRLChain
	issuerCerts  *keymanager.CertificateChain
	issuerCRLs   *keymanager.CRLChain

	allRoots *keymanager.CertificateChain
	allCerts *keymanager.CertificateChain
	allCRLs  *keymanager.CRLChain

	rejected    []*keymanager.Certificate
	maxRejected int

	permissive bool
	storeRoot  string
	auditLog   *audit.Log
}

// NewProvider builds a Provider from opts. An empty trusted set is a
// configuration error, not a silent runtime accept: the provider is
// still constructed (issuer-only stores exist operationally) but every
// Validate call fails with Untrusted until a trusted certificate is
// installed.
func NewProvider(opts Options) (*Provider, error) {
	p := &Provider{
		trustedCerts: emptyCertChainIfNil(opts.TrustedCerts),
		trustedCRLs:  emptyCRLChainIfNil(opts.TrustedCRLs),
		issuerCerts:  emptyCertChainIfNil(opts.IssuerCerts),
		issuerCRLs:   emptyCRLChainIfNil(opts.IssuerCRLs),
		maxRejected:  opts.MaxRejected,
		permissive:   opts.Permissive,
		storeRoot:    opts.StoreRoot,
		auditLog:     opts.AuditLog,
	}
	if p.maxRejected <= 0 {
		p.maxRejected = defaultMaxRejected
	}
	if p.trustedCerts.Len() == 0 && !p.permissive {
		logger := obslog.WithComponent("pki")
		logger.Warn().Msg("provider constructed with an empty trusted set; every validation will fail untrusted")
	}
	p.recomputeUnions()
	return p, nil
}

func emptyCertChainIfNil(c *keymanager.CertificateChain) *keymanager.CertificateChain {
	if c != nil {
		return c
	}
	chain, _ := keymanager.NewCertificateChain()
	return chain
}

func emptyCRLChainIfNil(c *keymanager.CRLChain) *keymanager.CRLChain {
	if c != nil {
		return c
	}
	return keymanager.NewCRLChain()
}

// recomputeUnions rebuilds all_roots/all_certs/all_crls from the
// trusted and issuer sets. Caller must hold mu.
func (p *Provider) recomputeUnions() {
	var trustedRoots keymanager.CertificateChain
	for _, c := range p.trustedCerts.Certs() {
		if c.IsCA() {
			trustedRoots.Append(c)
		}
	}
	var issuerRoots keymanager.CertificateChain
	for _, c := range p.issuerCerts.Certs() {
		if c.IsCA() {
			issuerRoots.Append(c)
		}
	}

	p.allRoots = trustedRoots.Union(&issuerRoots)
	p.allCerts = p.trustedCerts.Union(p.issuerCerts)
	p.allCRLs = p.trustedCRLs.Union(p.issuerCRLs)
}

// Permissive reports whether the provider accepts every candidate.
func (p *Provider) Permissive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permissive
}

// SetPermissive can only raise the flag, never lower it: once
// constructed or set permissive, a provider cannot be demoted.
func (p *Provider) SetPermissive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permissive = true
}

// TrustedCerts returns the trusted certificate chain. The returned
// chain must not be mutated by the caller.
func (p *Provider) TrustedCerts() *keymanager.CertificateChain {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trustedCerts
}

// TrustedCertCount reports the number of certificates in the trusted
// set (roots, intermediates, and leaves combined).
func (p *Provider) TrustedCertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trustedCerts.Len()
}

// TrustedCRLCount reports the number of CRLs in the trusted set.
func (p *Provider) TrustedCRLCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trustedCRLs.Len()
}

// IssuerCertCount reports the number of certificates in the issuer
// set.
func (p *Provider) IssuerCertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issuerCerts.Len()
}

// IssuerCRLCount reports the number of CRLs in the issuer set.
func (p *Provider) IssuerCRLCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issuerCRLs.Len()
}

// Rejected returns a snapshot of the rejected-certificate list, oldest
// first.
func (p *Provider) Rejected() []*keymanager.Certificate {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*keymanager.Certificate, len(p.rejected))
	copy(out, p.rejected)
	return out
}

// insertRejected appends cert to the rejected list, evicting the
// oldest entry when full, and is a no-op if cert is already present.
func (p *Provider) insertRejected(cert *keymanager.Certificate) {
	for _, existing := range p.rejected {
		if existing.Equal(cert) {
			return
		}
	}
	if len(p.rejected) >= p.maxRejected {
		p.rejected = p.rejected[1:]
	}
	p.rejected = append(p.rejected, cert)
}

// record appends a validation outcome to the optional audit log. A
// logging failure never turns a success path into a failure path, so
// errors here are only logged, never returned.
func (p *Provider) record(thumbprint string, status types.StatusCode, rejected bool) {
	if p.auditLog == nil {
		return
	}
	if err := p.auditLog.RecordValidation(thumbprint, status, rejected); err != nil {
		obslog.Errorf("audit log write failed", err)
	}
}

// removeRejected drops a byte-identical entry from the rejected list,
// run on successful validation.
func (p *Provider) removeRejected(cert *keymanager.Certificate) {
	for i, existing := range p.rejected {
		if existing.Equal(cert) {
			p.rejected = append(p.rejected[:i], p.rejected[i+1:]...)
			return
		}
	}
}

// validationFlags mirrors the low-level flag bitmap the status
// translation collapses; each field is set by a distinct check in
// Validate.
type validationFlags struct {
	leafCheckFailed bool
	badCrypto       bool
	notTrusted      bool
	timeInvalid     bool
	hostnameInvalid bool
	crlIssue        bool
	revoked         bool
	other           bool
}

// translate collapses the flag bitmap to a single status code,
// first match wins.
func (f validationFlags) translate() types.StatusCode {
	switch {
	case f.leafCheckFailed:
		return types.StatusBadInvalid
	case f.badCrypto:
		return types.StatusBadInvalid
	case f.notTrusted:
		return types.StatusBadUntrusted
	case f.timeInvalid:
		return types.StatusBadTimeInvalid
	case f.hostnameInvalid:
		return types.StatusBadHostNameInvalid
	case f.crlIssue:
		return types.StatusBadRevocationUnknown
	case f.revoked:
		return types.StatusBadRevoked
	default:
		return types.StatusBadUntrusted
	}
}

// Validate runs the chain-validation algorithm against cert, copying
// it first so in-place linking never mutates the caller's record. On
// failure the candidate is appended to the rejected list; on success
// any matching rejected entry is removed.
func (p *Provider) Validate(cert *keymanager.Certificate, prof profile.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.permissive {
		return nil
	}

	candidate := &keymanager.Certificate{DER: append([]byte(nil), cert.DER...), Parsed: cert.Parsed}

	// An empty trusted set rejects every chain: no candidate
	// can ever satisfy the trusted-certificate-seen requirement of
	// step 5, so fail up front with the same status.
	if p.trustedCerts.Len() == 0 {
		p.insertRejected(candidate)
		logger := obslog.WithThumbprint(candidate.Thumbprint())
		logger.Warn().Msg("rejected: provider has no trusted certificates")
		p.record(candidate.Thumbprint(), types.StatusBadUntrusted, true)
		return types.NewError(types.StatusBadUntrusted, fmt.Errorf("provider has an empty trusted certificate set"))
	}

	// Step 1: reject CA leaves unless self-signed + backward
	// interoperability + path_len == 0.
	if candidate.IsCA() {
		allowed := candidate.IsSelfSigned() && prof.Leaf.BackwardInteroperability &&
			candidate.Parsed.MaxPathLen == 0 && candidate.Parsed.MaxPathLenZero
		if !allowed {
			p.insertRejected(candidate)
			logger := obslog.WithThumbprint(candidate.Thumbprint())
			logger.Warn().Msg("rejected: CA certificate presented as validation leaf")
			p.record(candidate.Thumbprint(), types.StatusBadInvalid, true)
			return types.NewError(types.StatusBadInvalid, fmt.Errorf("CA certificate is not a valid validation leaf"))
		}
	}

	// Step 2: leaf profile checks.
	var flags validationFlags
	if prof.ApplyLeafProfile {
		if err := prof.Leaf.ValidateLeaf(candidate); err != nil {
			flags.leafCheckFailed = true
			p.insertRejected(candidate)
			logger := obslog.WithThumbprint(candidate.Thumbprint())
			logger.Warn().Msg("rejected: leaf profile check failed")
			p.record(candidate.Thumbprint(), flags.translate(), true)
			return types.NewError(flags.translate(), err)
		}
	}

	// Step 3/4: build roots and intermediates, run the path verifier.
	roots := p.allRoots
	if candidate.IsSelfSigned() {
		roots = roots.Union(mustChain(candidate))
	}
	chains, err := candidate.Parsed.Verify(verifyOptionsFor(roots, p.allCerts))
	if err != nil {
		classifyVerifyError(err, &flags)
		p.insertRejected(candidate)
		logger := obslog.WithThumbprint(candidate.Thumbprint())
		logger.Warn().Msg("rejected: chain verification failed")
		p.record(candidate.Thumbprint(), flags.translate(), true)
		return types.NewError(flags.translate(), err)
	}

	trustedSeen := false
	for _, chain := range chains {
		for depth, c := range chain {
			issuerCA := &keymanager.Certificate{DER: c.Raw, Parsed: c}
			if violatesChainProfile(c, prof.Chain) {
				flags.badCrypto = true
			}
			if depth > 0 && !prof.Chain.DisableRevocationCheck {
				if !p.allCRLs.HasValidCRLFor(issuerCA) {
					flags.crlIssue = true
				} else {
					child := &keymanager.Certificate{DER: chain[depth-1].Raw, Parsed: chain[depth-1]}
					if p.allCRLs.RevokesCertificate(child, issuerCA) {
						flags.revoked = true
					}
				}
			}
			if p.trustedCerts.ContainsEqual(issuerCA) {
				trustedSeen = true
			}
		}
	}
	if flags.badCrypto || flags.crlIssue || flags.revoked {
		p.insertRejected(candidate)
		logger := obslog.WithThumbprint(candidate.Thumbprint())
		logger.Warn().Msg("rejected: chain walk failed profile or revocation checks")
		p.record(candidate.Thumbprint(), flags.translate(), true)
		return types.NewError(flags.translate(), fmt.Errorf("chain walk failed profile or revocation checks"))
	}

	// Step 5: force failure if no trusted certificate appeared.
	if !trustedSeen {
		flags.notTrusted = true
		p.insertRejected(candidate)
		logger := obslog.WithThumbprint(candidate.Thumbprint())
		logger.Warn().Msg("rejected: no trusted certificate in chain")
		p.record(candidate.Thumbprint(), flags.translate(), true)
		return types.NewError(flags.translate(), fmt.Errorf("chain verified but contains no trusted certificate"))
	}

	// Step 7: success, drop any rejected entry for this candidate.
	p.removeRejected(candidate)
	p.record(candidate.Thumbprint(), types.StatusOK, false)
	return nil
}

func mustChain(c *keymanager.Certificate) *keymanager.CertificateChain {
	chain, _ := keymanager.NewCertificateChain(c)
	return chain
}

// violatesChainProfile applies the chain profile's pinned hash family,
// public-key algorithms, and minimum RSA key size to one certificate
// of a verified chain. The standard library path verifier has no hook
// for these, so they run as a post-walk check over every chain member.
func violatesChainProfile(c *x509.Certificate, cp profile.ChainProfile) bool {
	if len(cp.AllowedHashes) > 0 {
		allowed := false
		for _, alg := range cp.AllowedHashes {
			if alg == c.SignatureAlgorithm {
				allowed = true
				break
			}
		}
		if !allowed {
			return true
		}
	}
	pub, isRSA := c.PublicKey.(*rsa.PublicKey)
	if isRSA {
		if cp.MinimumRSAKeySizeBits > 0 && pub.N.BitLen() < cp.MinimumRSAKeySizeBits {
			return true
		}
		return false
	}
	if len(cp.AllowedPublicKeyAlgs) == 0 {
		return false
	}
	for _, alg := range cp.AllowedPublicKeyAlgs {
		if alg == profile.PKAny {
			return false
		}
	}
	return true
}

// verifyOptionsFor builds the standard library VerifyOptions used by
// both Validate and VerifyEveryCertificate.
func verifyOptionsFor(roots, intermediates *keymanager.CertificateChain) x509.VerifyOptions {
	return x509.VerifyOptions{
		Roots:         roots.Pool(),
		Intermediates: intermediates.Pool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		CurrentTime:   time.Now(),
	}
}

// classifyVerifyError maps the standard library's x509 verification
// errors onto the flag bitmap.
func classifyVerifyError(err error, flags *validationFlags) {
	switch e := err.(type) {
	case x509.CertificateInvalidError:
		switch e.Reason {
		case x509.Expired:
			flags.timeInvalid = true
		case x509.IncompatibleUsage, x509.TooManyIntermediates, x509.NameMismatch, x509.NameConstraintsWithoutSANs:
			flags.leafCheckFailed = true
		case x509.CANotAuthorizedForThisName:
			flags.hostnameInvalid = true
		default:
			flags.badCrypto = true
		}
	case x509.UnknownAuthorityError:
		flags.notTrusted = true
	case x509.HostnameError:
		flags.hostnameInvalid = true
	default:
		flags.other = true
	}
}
