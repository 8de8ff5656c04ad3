package keymanager

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testRSAKey(t *testing.T, bits int) *Key {
	t.Helper()
	k, err := GenerateRSAKey(bits, nil)
	require.NoError(t, err)
	return k
}

func TestThumbprintDeterministic(t *testing.T) {
	der := []byte("not-a-real-certificate-but-stable-bytes")
	a := ThumbprintHex(der)
	b := ThumbprintHex(der)
	require.Equal(t, a, b)
	require.Len(t, a, 40)
}

func TestPEMRoundTrip(t *testing.T) {
	k := testRSAKey(t, 2048)

	pemBytes, err := EncryptRSAPrivateKeyPEM(k, "hunter2")
	require.NoError(t, err)

	decrypted, err := DecryptRSAPrivateKeyPEM(pemBytes, "hunter2")
	require.NoError(t, err)
	require.Equal(t, k.Private.D, decrypted.Private.D)
	require.Equal(t, k.Private.N, decrypted.Private.N)
}

func TestPEMRoundTripEmptyPasswordRefused(t *testing.T) {
	k := testRSAKey(t, 2048)
	_, err := EncryptRSAPrivateKeyPEM(k, "")
	require.Error(t, err)
}

func TestPEMRoundTripWrongPasswordFails(t *testing.T) {
	k := testRSAKey(t, 2048)
	pemBytes, err := EncryptRSAPrivateKeyPEM(k, "correct-password")
	require.NoError(t, err)

	_, err = DecryptRSAPrivateKeyPEM(pemBytes, "wrong-password")
	require.Error(t, err)
}

func TestPBKDF1MD5KeySchedule(t *testing.T) {
	iv := make([]byte, 16)
	for i := range iv {
		iv[i] = byte(i)
	}
	password := []byte("secretpassword")

	key, err := pbkdf1MD5AES256Key(password, iv)
	require.NoError(t, err)
	require.Len(t, key, 32)

	// K[0:16] = MD5(pwd || iv[0:8]),
	// K[16:32] = MD5(K[0:16] || pwd || iv[0:8]).
	salt := iv[:8]
	k0 := md5.Sum(append(append([]byte(nil), password...), salt...))
	require.Equal(t, k0[:], key[:16])
	k1input := append(append(append([]byte(nil), k0[:]...), password...), salt...)
	k1 := md5.Sum(k1input)
	require.Equal(t, k1[:], key[16:])
}

func TestPKCS5PaddingAppliedOnlyWhenUnaligned(t *testing.T) {
	aligned := make([]byte, 32)
	require.Equal(t, aligned, pkcs5PadToBlock(aligned))

	unaligned := make([]byte, 30)
	padded := pkcs5PadToBlock(unaligned)
	require.Len(t, padded, 32)
	require.Equal(t, byte(2), padded[30])
	require.Equal(t, byte(2), padded[31])
}

func TestBuildCSRParsesAndVerifies(t *testing.T) {
	k := testRSAKey(t, 2048)
	der, err := BuildCSR(CSRRequest{
		Subject:        pkix.Name{CommonName: "test-client"},
		HashAlgorithm:  "sha256",
		IsServer:       false,
		ApplicationURI: "urn:test:application",
		DNSNames:       []string{"localhost"},
		Key:            k,
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(der), maxCSRBytes)

	csr, err := x509.ParseCertificateRequest(der)
	require.NoError(t, err)
	require.NoError(t, csr.CheckSignature())
	require.Equal(t, "test-client", csr.Subject.CommonName)
	require.Contains(t, csr.DNSNames, "localhost")
}

func TestBuildCSRRejectsMissingSAN(t *testing.T) {
	k := testRSAKey(t, 2048)
	_, err := BuildCSR(CSRRequest{
		Subject:       pkix.Name{CommonName: "test-client"},
		HashAlgorithm: "sha256",
		Key:           k,
	})
	require.Error(t, err)
}

func TestExtractSubjectAltNames(t *testing.T) {
	k := testRSAKey(t, 2048)
	uri, err := url.Parse("urn:example:node:alpha")
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "san-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		URIs:         []*url.URL{uri},
		DNSNames:     []string{"node-alpha.example.com", "node-alpha"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, k.Public, k.Private)
	require.NoError(t, err)
	cert, err := ParseCertificateDER(der)
	require.NoError(t, err)

	san := ExtractSubjectAltNames(cert)
	require.Equal(t, "urn:example:node:alpha", san.ApplicationURI)
	require.Equal(t, []string{"node-alpha.example.com", "node-alpha"}, san.DNSNames)
}

func TestExtractSubjectAltNamesAbsent(t *testing.T) {
	k := testRSAKey(t, 2048)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(4),
		Subject:      pkix.Name{CommonName: "no-san"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, k.Public, k.Private)
	require.NoError(t, err)
	cert, err := ParseCertificateDER(der)
	require.NoError(t, err)

	san := ExtractSubjectAltNames(cert)
	require.Empty(t, san.ApplicationURI)
	require.Empty(t, san.DNSNames)
}

func TestMarshalPrivateKeyDERBufferTooSmall(t *testing.T) {
	k := testRSAKey(t, 2048)
	_, err := MarshalPrivateKeyDER(k, make([]byte, 16))
	require.Error(t, err)

	buf := make([]byte, derRecommendedBufferSize(k.Private.Size()))
	n, err := MarshalPrivateKeyDER(k, buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	// Right-to-left write: the DER occupies the buffer's tail.
	parsed, err := ParsePrivateKeyDER(buf[len(buf)-n:])
	require.NoError(t, err)
	require.Equal(t, k.Private.N, parsed.Private.N)
}

func TestPlainPEMRoundTrip(t *testing.T) {
	k := testRSAKey(t, 2048)
	pemBytes, err := EncodePrivateKeyPlainPEM(k)
	require.NoError(t, err)

	parsed, err := ParsePrivateKeyPEM(pemBytes)
	require.NoError(t, err)
	require.Equal(t, k.Private.D, parsed.Private.D)
}

func TestHashAlgByNameIsCaseInsensitive(t *testing.T) {
	for _, name := range []string{"SHA256", "sha256", "Sha256"} {
		_, err := hashAlgByName(name)
		require.NoError(t, err)
	}
	_, err := hashAlgByName("md5")
	require.Error(t, err)
}

func TestCertificateChainRejectsDuplicates(t *testing.T) {
	der := []byte("duplicate-der-bytes")
	c1 := &Certificate{DER: der}
	c2 := &Certificate{DER: append([]byte(nil), der...)}

	chain, err := NewCertificateChain(c1)
	require.NoError(t, err)
	require.Error(t, chain.Append(c2))
	require.Equal(t, 1, chain.Len())
}

func TestPublicKeyFromCertificateIsBorrowed(t *testing.T) {
	k := testRSAKey(t, 2048)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "self-signed"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, k.Public, k.Private)
	require.NoError(t, err)
	cert, err := ParseCertificateDER(der)
	require.NoError(t, err)

	borrowed, err := PublicKeyFromCertificate(cert)
	require.NoError(t, err)
	require.True(t, borrowed.Borrowed)
	require.False(t, borrowed.IsPrivate())
}
