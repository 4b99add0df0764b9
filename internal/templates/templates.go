// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package templates ships the source templates every generated artifact is
// rendered from. The compiled-in copies are used by default; a
// `<sourcePath>/templates/` directory overrides them file by file, so the
// generator can be pointed at patched templates without rebuilding.
package templates

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/gomlx/tensorgen/internal/codetemplate"
	"github.com/pkg/errors"
)

//go:embed files
var embedded embed.FS

// Load returns the template of the given name (e.g. "TypeDerived.cpp"),
// preferring `<sourcePath>/templates/<name>` when sourcePath is non-empty
// and the file exists there.
func Load(name, sourcePath string) (*codetemplate.Template, error) {
	if sourcePath != "" {
		override := filepath.Join(sourcePath, "templates", name)
		if contents, err := os.ReadFile(override); err == nil {
			return codetemplate.New(name, string(contents)), nil
		}
	}
	contents, err := embedded.ReadFile("files/" + name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown template %q", name)
	}
	return codetemplate.New(name, string(contents)), nil
}
