package filemanager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorgen/internal/codetemplate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFM(t *testing.T) *FileManager {
	fm, err := New("test", t.TempDir())
	require.NoError(t, err)
	return fm
}

func TestDeclareWriteCheck(t *testing.T) {
	fm := newTestFM(t)
	fm.WillWrite("a.h")
	fm.WillWrite("a.cpp")
	require.NoError(t, fm.Write("a.h", "// header\n"))
	require.NoError(t, fm.Write("a.cpp", "// source\n"))
	require.NoError(t, fm.CheckAllWritten())

	contents, err := os.ReadFile(filepath.Join(fm.InstallDir(), "a.h"))
	require.NoError(t, err)
	assert.Equal(t, "// header\n", string(contents))
	assert.Equal(t, 2, fm.FileCount())
	assert.Equal(t, int64(len("// header\n")+len("// source\n")), fm.TotalBytes())
}

func TestNeverWrittenIsViolation(t *testing.T) {
	fm := newTestFM(t)
	fm.WillWrite("a.h")
	fm.WillWrite("b.h")
	require.NoError(t, fm.Write("a.h", "x"))
	err := fm.CheckAllWritten()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never written")
	assert.Contains(t, err.Error(), "b.h")
}

func TestUndeclaredWriteIsDeferred(t *testing.T) {
	fm := newTestFM(t)
	fm.WillWrite("a.h")
	require.NoError(t, fm.Write("a.h", "x"))
	// The undeclared write itself succeeds, the violation shows up at check
	// time so a single run reports every drift point.
	require.NoError(t, fm.Write("rogue.cpp", "y"))
	err := fm.CheckAllWritten()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rogue.cpp")
	assert.Contains(t, err.Error(), "without being declared")
}

func TestViolationsAggregated(t *testing.T) {
	fm := newTestFM(t)
	fm.WillWrite("missing.h")
	require.NoError(t, fm.Write("rogue.cpp", "y"))
	err := fm.CheckAllWritten()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.h")
	assert.Contains(t, err.Error(), "rogue.cpp")
}

func TestDeclareAfterWritePanics(t *testing.T) {
	fm := newTestFM(t)
	fm.WillWrite("a.h")
	require.NoError(t, fm.Write("a.h", "x"))
	exception := exceptions.Try(func() { fm.WillWrite("late.h") })
	require.NotNil(t, exception)
}

func TestWriteAfterClosePanics(t *testing.T) {
	fm := newTestFM(t)
	require.NoError(t, fm.CheckAllWritten())
	exception := exceptions.Try(func() { _ = fm.Write("a.h", "x") })
	require.NotNil(t, exception)
}

func TestWriteIfChangedIdempotent(t *testing.T) {
	fm := newTestFM(t)
	fm.WillWrite("a.h")
	require.NoError(t, fm.Write("a.h", "stable\n"))
	path := filepath.Join(fm.InstallDir(), "a.h")
	statBefore, err := os.Stat(path)
	require.NoError(t, err)
	firstChanged := fm.ChangedCount()

	fm2, err := New("test", fm.InstallDir())
	require.NoError(t, err)
	fm2.WillWrite("a.h")
	require.NoError(t, fm2.Write("a.h", "stable\n"))
	statAfter, err := os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, 1, firstChanged)
	assert.Equal(t, 0, fm2.ChangedCount())
	assert.Equal(t, statBefore.ModTime(), statAfter.ModTime())
}

func TestWriteOutputs(t *testing.T) {
	fm := newTestFM(t)
	fm.WillWrite("b.h")
	fm.WillWrite("a.h")
	depsPath := filepath.Join(t.TempDir(), "deps")
	require.NoError(t, fm.WriteOutputs(depsPath))
	contents, err := os.ReadFile(depsPath)
	require.NoError(t, err)
	want := filepath.Join(fm.InstallDir(), "a.h") + ";" + filepath.Join(fm.InstallDir(), "b.h") + ";"
	assert.Equal(t, want, string(contents))
}

func TestWriteTemplate(t *testing.T) {
	fm := newTestFM(t)
	fm.WillWrite("gen.cpp")
	tmpl := codetemplate.New("Gen.cpp", "// ${generated_comment}\n${body}\n")
	require.NoError(t, fm.WriteTemplate("gen.cpp", tmpl, codetemplate.Env{"body": "int x;"}))
	contents, err := os.ReadFile(filepath.Join(fm.InstallDir(), "gen.cpp"))
	require.NoError(t, err)
	assert.Contains(t, string(contents), "generated by tensorgen from Gen.cpp")
	assert.Contains(t, string(contents), "int x;")
	require.NoError(t, fm.CheckAllWritten())
}
