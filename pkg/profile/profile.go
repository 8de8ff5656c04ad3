package profile

import "crypto/x509"

// PublicKeyAlgorithm restricts what key algorithm a certificate in the
// chain may use. PKAny disables the restriction.
type PublicKeyAlgorithm int

const (
	PKRSA PublicKeyAlgorithm = iota
	PKAny
)

// KeyUsage and ExtendedKeyUsage masks, compared by bitwise subset
// check against a profile's required masks. The DisableCheck bit is a
// wildcard short-circuit: when set, the mask check always passes.
type KeyUsageMask uint32

const (
	KeyUsageDigitalSignature KeyUsageMask = 1 << iota
	KeyUsageNonRepudiation
	KeyUsageKeyEncipherment
	KeyUsageDataEncipherment
	KeyUsageKeyAgreement
	KeyUsageKeyCertSign
	KeyUsageCRLSign
	KeyUsageDisableCheck KeyUsageMask = 1 << 31
)

type ExtKeyUsageMask uint32

const (
	ExtKeyUsageServerAuth ExtKeyUsageMask = 1 << iota
	ExtKeyUsageClientAuth
	ExtKeyUsageDisableCheck ExtKeyUsageMask = 1 << 31
)

// ChainProfile governs signature/algorithm/key-size checks applied
// across the whole chain during path verification.
type ChainProfile struct {
	AllowedHashes          []x509.SignatureAlgorithm
	AllowedPublicKeyAlgs   []PublicKeyAlgorithm
	MinimumRSAKeySizeBits  int
	DisableRevocationCheck bool
}

// LeafProfile governs the end-entity-specific checks.
type LeafProfile struct {
	AllowedHashes            []x509.SignatureAlgorithm
	PublicKeyAlgorithm       PublicKeyAlgorithm
	MinimumRSAKeySizeBits    int
	MaximumRSAKeySizeBits    int
	ApplySecurityPolicy      bool
	KeyUsage                 KeyUsageMask
	ExtendedKeyUsage         ExtKeyUsageMask
	ExpectedApplicationURI   string // empty disables the check
	ExpectedHostnameURL      string // empty disables the check; host is parsed out of a URL
	BackwardInteroperability bool   // allow a self-signed root as a leaf
}

// Profile pairs a chain profile with an optional leaf profile. When
// ApplyLeafProfile is false, only the chain walk runs.
type Profile struct {
	Chain            ChainProfile
	Leaf             LeafProfile
	ApplyLeafProfile bool
}

// maskSatisfied reports whether required is a subset of mask, or
// whether mask carries disableBit.
func maskSatisfied(required, mask, disableBit uint32) bool {
	if mask&disableBit != 0 {
		return true
	}
	return required&^mask == 0
}

// KeyUsageSatisfies reports whether have is a superset of required,
// honoring the DisableCheck wildcard.
func KeyUsageSatisfies(required, have KeyUsageMask) bool {
	return maskSatisfied(uint32(required&^KeyUsageDisableCheck), uint32(have), uint32(KeyUsageDisableCheck))
}

// ExtKeyUsageSatisfies is ExtKeyUsage's analogue of KeyUsageSatisfies.
func ExtKeyUsageSatisfies(required, have ExtKeyUsageMask) bool {
	return maskSatisfied(uint32(required&^ExtKeyUsageDisableCheck), uint32(have), uint32(ExtKeyUsageDisableCheck))
}
