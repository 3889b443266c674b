// Package certs loads the extra certificate authorities a suite ships in its
// ca folder so that HTTP and AMQP clients trust internal endpoints.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// Dir is the folder, relative to the suite root, searched for certificates.
const Dir = "ca"

// Pattern matches certificate files at any depth below Dir.
const Pattern = "**/*.crt"

// Authorities is the set of certificates found below a ca folder, appended to
// the system roots.
type Authorities struct {
	Pool  *x509.CertPool
	Files []string
}

// Load reads every certificate below <root>/ca. A missing folder is not an
// error: the system pool is returned unchanged.
func Load(root string) (Authorities, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		log.Debug().Err(err).Msg("no system certificate pool, starting from an empty one")
		pool = x509.NewCertPool()
	}
	a := Authorities{Pool: pool}

	dir := filepath.Join(root, Dir)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return a, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), Pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return Authorities{}, fmt.Errorf("can't list the certificates in %v: %w", dir, err)
	}

	for _, m := range matches {
		p := filepath.Join(dir, filepath.FromSlash(m))
		b, err := os.ReadFile(p)
		if err != nil {
			return Authorities{}, fmt.Errorf("can't read the certificate %v: %w", p, err)
		}
		if !a.Pool.AppendCertsFromPEM(b) {
			return Authorities{}, fmt.Errorf("no PEM certificate found in %v", p)
		}
		a.Files = append(a.Files, p)
	}

	if len(a.Files) > 0 {
		log.Debug().Strs("files", a.Files).Msg("loaded CA certificates")
	}
	return a, nil
}

// TLSConfig returns a client configuration trusting the loaded authorities.
func (a Authorities) TLSConfig() *tls.Config {
	return &tls.Config{
		RootCAs:    a.Pool,
		MinVersion: tls.VersionTLS12,
	}
}
