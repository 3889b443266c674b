package pdf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptgott/e2ekit/user"
)

var zoe = user.TestUser{
	Gender:    user.Madame,
	Lastname:  "MARTIN",
	Firstname: "Zoé",
	Email:     "zmartin-123@maildrop.cc",
	Password:  "secret",
}

func TestLines(t *testing.T) {
	at := time.Date(2024, 3, 9, 8, 5, 7, 0, time.UTC)
	want := []string{
		"ATTESTATION",
		"Le 09/03/2024 à 08:05:07",
		"Madame Zoé MARTIN",
		"Adresse e-mail : zmartin-123@maildrop.cc",
	}
	if diff := cmp.Diff(want, lines("attestation", zoe, at)); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestGenerateAndDelete(t *testing.T) {
	root := t.TempDir()

	path, err := Generate(root, "attestation", zoe)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "data", "files", "attestation.pdf"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")), "the file is a PDF document")

	Delete(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Deleting twice only logs.
	Delete(path)
}

func TestGenerateIntoUnwritableFolder(t *testing.T) {
	root := t.TempDir()
	// A file where the data folder should be.
	require.NoError(t, os.WriteFile(filepath.Join(root, "data"), nil, 0o644))

	_, err := Generate(root, "attestation", zoe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to create pdf file")
}
