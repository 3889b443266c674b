package smtptest

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/flashmob/go-guerrilla/tests/testcert"
)

// tlsHost is the only name the generated certificate is valid for.
const tlsHost = "127.0.0.1"

// GenerateTLSFiles writes a TLS key and a self-signed CA certificate for
// 127.0.0.1 to a temporary directory removed after the test. It returns the
// paths of the key and the certificate.
func GenerateTLSFiles(t testing.TB) (keyPath string, certPath string) {
	t.Helper()
	d := t.TempDir() + string(os.PathSeparator)
	err := testcert.GenerateCert(
		tlsHost,
		"",                         // defaults to now
		time.Duration(1)*time.Hour, // the test won't run for this long
		true,                       // is a CA cert
		2048,
		"", // RSA rather than an ecdsa curve
		d,
	)
	if err != nil {
		panic(fmt.Sprintf("can't generate the TLS files: %v", err))
	}

	// These path names are hardcoded into testcert.GenerateCert
	return d + tlsHost + ".key.pem", d + tlsHost + ".cert.pem"
}

// CertPool returns a pool holding only the certificate at certPath.
func CertPool(certPath string) *x509.CertPool {
	b, err := os.ReadFile(certPath)
	if err != nil {
		panic(fmt.Sprintf("can't read the certificate: %v", err))
	}
	p := x509.NewCertPool()
	if !p.AppendCertsFromPEM(b) {
		panic(fmt.Sprintf("no PEM certificate in %v", certPath))
	}
	return p
}

// NewInProcessTLSServer is NewInProcessServer offering STARTTLS with the key
// pair at keyPath and certPath.
func NewInProcessTLSServer(keyPath, certPath string) *InProcessServer {
	cer, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		panic(fmt.Sprintf("can't load the TLS key pair: %v", err))
	}
	is := NewInProcessServer()
	is.Server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cer}}
	return is
}
