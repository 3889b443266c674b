// Package pdf writes small PDF documents describing the test user, for forms
// that require an uploaded file.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/logging"
	"github.com/ptgott/e2ekit/user"
)

const (
	fontSize   = 12
	margin     = 10
	lineHeight = 6
)

// Folder returns where generated files are written for a suite rooted at root.
func Folder(root string) string {
	return filepath.Join(root, "data", "files")
}

func lines(filename string, u user.TestUser, t time.Time) []string {
	return []string{
		strings.ToUpper(filename),
		t.Format("Le 02/01/2006 à 15:04:05"),
		fmt.Sprintf("%s %s %s", u.Gender, u.Firstname, u.Lastname),
		"Adresse e-mail : " + u.Email,
	}
}

// Generate writes <root>/data/files/<filename>.pdf and returns its path.
func Generate(root, filename string, u user.TestUser) (string, error) {
	dir := Folder(root)
	path := filepath.Join(dir, filename+".pdf")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.DetailError(err)
		return "", fmt.Errorf("unable to create pdf file %q: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("generating pdf")

	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()
	doc.SetFont("Helvetica", "", fontSize)
	for i, l := range lines(filename, u, time.Now()) {
		doc.Text(margin, margin+float64(i*lineHeight), tr(l))
	}

	if err := doc.OutputFileAndClose(path); err != nil {
		logging.DetailError(err)
		return "", fmt.Errorf("unable to create pdf file %q: %w", path, err)
	}
	return path, nil
}

// Delete removes a generated file. Failures are only logged.
func Delete(path string) {
	if err := os.Remove(path); err != nil {
		logging.DetailError(err)
	}
}
