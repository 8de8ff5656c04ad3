package keymanager

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"net/url"
	"strings"

	"github.com/systerel/s2opc-go/pkg/types"
)

// maxCSRBytes is the fixed CSR serialisation target.
// Exceeding it is an explicit error, never a silent truncation.
const maxCSRBytes = 4096

// hashAlgByName resolves a hash algorithm by case-insensitive name
// from the fixed allowed set.
func hashAlgByName(name string) (crypto.Hash, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return crypto.SHA1, nil
	case "sha224":
		return crypto.SHA224, nil
	case "sha256":
		return crypto.SHA256, nil
	case "sha384":
		return crypto.SHA384, nil
	case "sha512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("unknown hash algorithm %q", name)
	}
}

func signatureAlgorithmFor(hash crypto.Hash) x509.SignatureAlgorithm {
	switch hash {
	case crypto.SHA1:
		return x509.SHA1WithRSA
	case crypto.SHA224:
		return x509.SHA256WithRSA // no SHA224WithRSA constant; SHA256 is the nearest supported tier
	case crypto.SHA256:
		return x509.SHA256WithRSA
	case crypto.SHA384:
		return x509.SHA384WithRSA
	case crypto.SHA512:
		return x509.SHA512WithRSA
	default:
		return x509.SHA256WithRSA
	}
}

// CSRRequest describes a certificate signing request to build
type CSRRequest struct {
	Subject        pkix.Name
	HashAlgorithm  string // one of sha1, sha224, sha256, sha384, sha512
	IsServer       bool
	ApplicationURI string
	DNSNames       []string
	Key            *Key // must carry private material; signs the CSR
}

// BuildCSR constructs an X.509 v1 CertificationRequest with
// KeyUsage = digitalSignature|nonRepudiation|keyEncipherment|dataEncipherment,
// ExtendedKeyUsage = serverAuth or clientAuth, BasicConstraints(cA=false),
// and a subjectAltName with one URI and one-or-more dNSName entries.
// The serialised CSR must fit in 4096 bytes; exceeding that is returned
// as an explicit error rather than truncated.
func BuildCSR(req CSRRequest) ([]byte, error) {
	if req.Key == nil || req.Key.Private == nil {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("csr requires a private key"))
	}
	if req.ApplicationURI == "" || len(req.DNSNames) == 0 {
		return nil, types.NewError(types.StatusBadInvalidArgument, fmt.Errorf("csr requires an ApplicationUri and at least one DNS name"))
	}

	hashAlg, err := hashAlgByName(req.HashAlgorithm)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalidArgument, err)
	}

	keyUsageExt, err := marshalKeyUsageExtension(
		x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment |
			x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalid, fmt.Errorf("marshal key usage: %w", err))
	}

	ekuOID := extKeyUsageClientAuthOID
	if req.IsServer {
		ekuOID = extKeyUsageServerAuthOID
	}
	ekuExt, err := marshalExtKeyUsageExtension(ekuOID)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalid, fmt.Errorf("marshal extended key usage: %w", err))
	}

	bcExt, err := marshalBasicConstraintsExtension(false)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalid, fmt.Errorf("marshal basic constraints: %w", err))
	}

	uri, err := url.Parse(req.ApplicationURI)
	if err != nil {
		return nil, types.NewError(types.StatusBadUriInvalid, fmt.Errorf("parse application uri: %w", err))
	}

	template := &x509.CertificateRequest{
		Subject:            req.Subject,
		SignatureAlgorithm: signatureAlgorithmFor(hashAlg),
		URIs:               []*url.URL{uri},
		DNSNames:           req.DNSNames,
		ExtraExtensions:    []pkix.Extension{keyUsageExt, ekuExt, bcExt},
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, template, req.Key.Private)
	if err != nil {
		return nil, types.NewError(types.StatusBadInvalid, fmt.Errorf("create certificate request: %w", err))
	}
	if len(der) > maxCSRBytes {
		return nil, types.NewError(types.StatusBadInvalidArgument,
			fmt.Errorf("csr is %d bytes, exceeds the %d byte limit", len(der), maxCSRBytes))
	}
	return der, nil
}
