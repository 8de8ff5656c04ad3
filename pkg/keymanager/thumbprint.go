package keymanager

import (
	"crypto/sha1" //nolint:gosec // thumbprint algorithm is fixed by the protocol, not a security boundary
	"encoding/hex"
	"strings"
)

// ThumbprintHex returns the SHA-1 hash of der as a 40-character
// uppercase hex string with no separators. It is used both as the
// on-disk filename for a certificate/CRL and as the standard log
// identifier.
func ThumbprintHex(der []byte) string {
	sum := sha1.Sum(der) //nolint:gosec
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
