package faq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	items, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), items)
	assert.Len(t, items, 6)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
items:
  - question: Where is the office?
    answer: "📍 Lenina st. 1"
  - question: Opening hours?
    answer: |
      Mon-Fri 9-18
`)

	items, err := Load(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Where is the office?", items[0].Question)
	assert.Equal(t, "Mon-Fri 9-18\n", items[1].Answer)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "items: [oops"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "items: []"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "items:\n  - question: only a question\n"))
	assert.Error(t, err)
}
