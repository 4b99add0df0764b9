package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	tmpl, err := Load("TypeDerived.h", "")
	require.NoError(t, err)
	assert.Equal(t, "TypeDerived.h", tmpl.Name)
}

func TestLoadUnknown(t *testing.T) {
	_, err := Load("NoSuchTemplate.cpp", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchTemplate.cpp")
}

func TestLoadSourcePathOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates", "TypeDerived.h"),
		[]byte("patched ${Type}"), 0644))

	tmpl, err := Load("TypeDerived.h", dir)
	require.NoError(t, err)
	got, err := tmpl.Substitute(map[string]any{"Type": "CPUType"})
	require.NoError(t, err)
	assert.Equal(t, "patched CPUType", got)

	// Files absent from the override directory fall back to the
	// compiled-in copies.
	fallback, err := Load("Functions.h", dir)
	require.NoError(t, err)
	assert.NotContains(t, fallback.Name, dir)
}
