package keymanager

import "encoding/asn1"

// subjectAltNameOID is id-ce-subjectAltName, 2.5.29.17.
var subjectAltNameOID = asn1.ObjectIdentifier{2, 5, 29, 17}

const (
	tagDNSName              = 2
	tagURI                  = 6
	minApplicationURILength = 3
)

// SubjectAltNames holds the extracted ApplicationUri and DNS names
// from a certificate's subjectAltName extension.
type SubjectAltNames struct {
	ApplicationURI string   // empty if not present
	DNSNames       []string
}

// ExtractSubjectAltNames locates the subjectAltName extension in cert
// and walks its GeneralNames SEQUENCE, extracting at most one
// uniformResourceIdentifier entry (as the ApplicationUri, only if its
// length is at least 3) and every dNSName entry.
//
// The walk is iterative, never recursive, and never reads out of
// bounds: a malformed length stops the walk, so that entry and any
// entry after it are not extracted.
func ExtractSubjectAltNames(cert *Certificate) SubjectAltNames {
	var result SubjectAltNames
	if cert == nil || cert.Parsed == nil {
		return result
	}

	var extValue []byte
	for _, ext := range cert.Parsed.Extensions {
		if ext.Id.Equal(subjectAltNameOID) {
			extValue = ext.Value
			break
		}
	}
	if len(extValue) == 0 {
		return result
	}

	// extValue is the extension's OCTET STRING content, which itself
	// is the DER encoding of the GeneralNames SEQUENCE: a tag byte and
	// a length, then the concatenated GeneralName TLVs.
	total, err := sequenceTotalLength(extValue)
	if err != nil || total > len(extValue) {
		return result
	}
	header, err := derHeaderLen(extValue)
	if err != nil {
		return result
	}
	pos := header
	end := total

	for pos < end {
		if pos+2 > len(extValue) {
			break
		}
		tagByte := extValue[pos]
		contextTag := int(tagByte &^ 0xC0) // strip the class bits
		lenByte := extValue[pos+1]

		var contentLen, lenBytes int
		if lenByte < 0x80 {
			contentLen = int(lenByte)
			lenBytes = 1
		} else {
			n := int(lenByte &^ 0x80)
			if n == 0 || n > 4 || pos+2+n > len(extValue) {
				break
			}
			for i := 0; i < n; i++ {
				contentLen = contentLen<<8 | int(extValue[pos+2+i])
			}
			lenBytes = 1 + n
		}

		contentStart := pos + 1 + lenBytes
		contentEnd := contentStart + contentLen
		if contentLen < 0 || contentEnd > len(extValue) || contentEnd > end {
			// Malformed length: stop rather than read out of bounds.
			break
		}
		value := extValue[contentStart:contentEnd]

		switch contextTag {
		case tagURI:
			if result.ApplicationURI == "" && len(value) >= minApplicationURILength {
				result.ApplicationURI = string(value)
			}
		case tagDNSName:
			if len(value) > 0 {
				result.DNSNames = append(result.DNSNames, string(value))
			}
		}

		pos = contentEnd
	}

	return result
}

// derHeaderLen returns the number of bytes the tag+length header of
// the leading TLV in buf occupies, without validating the declared
// content length against buf's size (sequenceTotalLength already did
// that for the outer SEQUENCE).
func derHeaderLen(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, errShortBuffer
	}
	lenByte := buf[1]
	if lenByte < 0x80 {
		return 2, nil
	}
	n := int(lenByte &^ 0x80)
	if n == 0 || n > 4 {
		return 0, errBadLength
	}
	return 2 + n, nil
}

var (
	errShortBuffer = asn1Err("buffer too short for DER header")
	errBadLength   = asn1Err("unsupported DER length-of-length")
)

type asn1Err string

func (e asn1Err) Error() string { return string(e) }
