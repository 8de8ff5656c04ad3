package keymanager

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
)

var (
	keyUsageOID         = asn1.ObjectIdentifier{2, 5, 29, 15}
	extKeyUsageOID      = asn1.ObjectIdentifier{2, 5, 29, 37}
	basicConstraintsOID = asn1.ObjectIdentifier{2, 5, 29, 19}

	// id-kp-serverAuth / id-kp-clientAuth (RFC 5280 §4.2.1.12).
	extKeyUsageServerAuthOID = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 1}
	extKeyUsageClientAuthOID = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 2}
)

// marshalKeyUsageExtension encodes an X.509 KeyUsage BIT STRING
// extension from a crypto/x509.KeyUsage bitmask.
func marshalKeyUsageExtension(usage x509.KeyUsage) (pkix.Extension, error) {
	var bits int
	for i := 0; i < 9; i++ {
		if usage&(1<<uint(i)) != 0 {
			bits = i + 1
		}
	}
	bytesLen := (bits + 7) / 8
	if bytesLen == 0 {
		bytesLen = 1
	}
	bitString := make([]byte, bytesLen)
	for i := 0; i < 9; i++ {
		if usage&(1<<uint(i)) != 0 {
			bitString[i/8] |= 0x80 >> uint(i%8)
		}
	}
	unused := bytesLen*8 - bits
	value, err := asn1.Marshal(asn1.BitString{Bytes: bitString, BitLength: bytesLen*8 - unused})
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: keyUsageOID, Critical: true, Value: value}, nil
}

// marshalExtKeyUsageExtension encodes an ExtendedKeyUsage extension
// containing a single purpose OID (serverAuth or clientAuth, never
// both).
func marshalExtKeyUsageExtension(purpose asn1.ObjectIdentifier) (pkix.Extension, error) {
	value, err := asn1.Marshal([]asn1.ObjectIdentifier{purpose})
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: extKeyUsageOID, Value: value}, nil
}

type basicConstraints struct {
	IsCA bool `asn1:"optional"`
}

// marshalBasicConstraintsExtension encodes BasicConstraints(cA=false)
// for a CSR leaf.
func marshalBasicConstraintsExtension(isCA bool) (pkix.Extension, error) {
	value, err := asn1.Marshal(basicConstraints{IsCA: isCA})
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: basicConstraintsOID, Critical: true, Value: value}, nil
}
