/*
Package keymanager parses, serialises, and fingerprints asymmetric keys
and certificates independently of any particular validation policy, and
builds certificate signing requests. It is the leaf dependency of
the PKI provider (pkg/pki).

# Architecture

	┌──────────────────────── KEY MANAGER ──────────────────────┐
	│                                                             │
	│  Key                                                       │
	│    - RSA public/private, parsed from DER or PEM            │
	│    - Borrowed flag: true when sourced from a Certificate,  │
	│      in which case the certificate owns the lifetime       │
	│                                                             │
	│  Certificate / CertificateChain                            │
	│    - raw DER + parsed *x509.Certificate                    │
	│    - duplicate DER is rejected on Append                   │
	│                                                             │
	│  CRL / CRLChain                                             │
	│    - raw DER + parsed *x509.RevocationList                  │
	│                                                             │
	│  Thumbprint                                                 │
	│    - SHA-1 over raw DER, 40-char uppercase hex              │
	│                                                             │
	│  SubjectAltName extraction                                  │
	│    - iterative GeneralNames walk, tolerant of malformed     │
	│      lengths (never reads out of bounds)                   │
	│                                                             │
	│  PEM-encrypted RSA private key                              │
	│    - PBKDF1-MD5 key schedule, AES-256-CBC, PKCS#5 padding   │
	│      (skipped when DER length is already block-aligned)    │
	│                                                             │
	│  CSR construction                                           │
	│    - KeyUsage + ExtendedKeyUsage + BasicConstraints(false)  │
	│      + one URI and one-or-more dNSName SAN entries          │
	└─────────────────────────────────────────────────────────────┘

Parsing never partially populates an output record: on any failure, the
caller gets a nil result and a non-nil error, never a half-built Key or
Certificate.
*/
package keymanager
