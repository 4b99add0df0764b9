// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package filemanager enforces the generator's output contract: every file a
// run produces is declared up front with WillWrite, written exactly once with
// Write, and the run ends with CheckAllWritten reporting every drift between
// the declared and the actual output set in one pass.
package filemanager

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorgen/internal/codetemplate"
	"github.com/gomlx/tensorgen/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FileManager owns one output partition (one install directory).
//
// It moves through three phases: declaring (WillWrite), writing (Write), and
// closed (after CheckAllWritten). Declaring a file after the first write, or
// writing after close, is a generator bug and panics.
type FileManager struct {
	// Name of the partition, used in logs and in the run summary.
	Name string

	installDir string
	pending    sets.Set[string]
	declared   sets.Set[string]
	writing    bool
	closed     bool
	undeclared []string

	files        []string
	changedFiles int
	totalBytes   int64
}

// New creates the file manager for one output partition, creating the
// install directory if needed.
func New(name, installDir string) (*FileManager, error) {
	if err := os.MkdirAll(installDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %q", installDir)
	}
	return &FileManager{
		Name:       name,
		installDir: installDir,
		pending:    sets.Make[string](),
		declared:   sets.Make[string](),
	}, nil
}

// InstallDir returns the partition's output directory.
func (fm *FileManager) InstallDir() string { return fm.installDir }

// WillWrite declares that filename will be produced by this run. All
// declarations must happen before the first Write, so that the declared set
// can be queried (dependency-list mode) without doing any generation work.
func (fm *FileManager) WillWrite(filename string) {
	if fm.writing || fm.closed {
		exceptions.Panicf(
			"filemanager %s: WillWrite(%q) after writing started; declare all outputs before generating",
			fm.Name, filename)
	}
	fm.pending.Insert(filename)
	fm.declared.Insert(filename)
}

// Write renders filename into the partition, if its content changed. A
// filename that was never declared is recorded as a violation and reported
// by CheckAllWritten, not here, so a single run surfaces every drift point.
func (fm *FileManager) Write(filename, contents string) error {
	if fm.closed {
		exceptions.Panicf("filemanager %s: Write(%q) after CheckAllWritten", fm.Name, filename)
	}
	fm.writing = true
	if err := fm.writeIfChanged(filepath.Join(fm.installDir, filename), contents); err != nil {
		return err
	}
	fm.files = append(fm.files, filename)
	fm.totalBytes += int64(len(contents))
	if fm.declared.Has(filename) {
		delete(fm.pending, filename)
	} else {
		fm.undeclared = append(fm.undeclared, filename)
	}
	return nil
}

// WriteTemplate renders the template against env and writes the result. The
// rendering environment gets a "generated_comment" entry naming the template
// the file came from.
func (fm *FileManager) WriteTemplate(filename string, tmpl *codetemplate.Template, env codetemplate.Env) error {
	env = env.Clone()
	env["generated_comment"] = "@" + "generated by tensorgen from " + tmpl.Name
	contents, err := tmpl.Substitute(env)
	if err != nil {
		return errors.WithMessagef(err, "rendering %s", filename)
	}
	return fm.Write(filename, contents)
}

// WriteOutputs writes the semicolon-joined sorted list of declared filenames
// to path. Build systems use this to compute dependencies without running
// the generators; after it no more declarations are accepted.
func (fm *FileManager) WriteOutputs(path string) error {
	var b strings.Builder
	for _, filename := range sets.Sorted(fm.declared) {
		b.WriteString(filepath.Join(fm.installDir, filename))
		b.WriteString(";")
	}
	fm.writing = true
	return fm.writeIfChanged(path, b.String())
}

// CheckAllWritten closes the manager and returns an error aggregating every
// output-contract violation: declared files never written and written files
// never declared.
func (fm *FileManager) CheckAllWritten() error {
	fm.closed = true
	var problems []string
	if len(fm.undeclared) > 0 {
		undeclared := slices.Clone(fm.undeclared)
		slices.Sort(undeclared)
		problems = append(problems,
			"files written without being declared (add WillWrite calls): "+strings.Join(undeclared, ", "))
	}
	if len(fm.pending) > 0 {
		problems = append(problems,
			"files declared with WillWrite but never written: "+strings.Join(sets.Sorted(fm.pending), ", "))
	}
	if len(problems) > 0 {
		return errors.Errorf("output partition %s: %s", fm.Name, strings.Join(problems, "; "))
	}
	return nil
}

// FileCount returns how many files this run produced in the partition.
func (fm *FileManager) FileCount() int { return len(fm.files) }

// ChangedCount returns how many of the produced files actually differed
// from what was on disk.
func (fm *FileManager) ChangedCount() int { return fm.changedFiles }

// TotalBytes returns the total rendered size of the partition's files.
func (fm *FileManager) TotalBytes() int64 { return fm.totalBytes }

// writeIfChanged only touches the disk if the new contents differ from the
// existing file, keeping re-runs invisible to the build system's mtime
// checks. A read error on the existing file is treated as "no such file"
// and a fresh write is attempted.
func (fm *FileManager) writeIfChanged(path string, contents string) error {
	old, err := os.ReadFile(path)
	if err == nil && string(old) == contents {
		klog.V(2).Infof("%s unchanged, skipping", path)
		return nil
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		return errors.Wrapf(err, "failed to write %q", path)
	}
	fm.changedFiles++
	klog.V(1).Infof("wrote %s", path)
	return nil
}
