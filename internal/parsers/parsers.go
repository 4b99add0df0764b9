// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package parsers implements the three declaration front ends the generator
// accepts: the legacy cwrap dialect, the nn.yaml neural-network operator
// dialect and the native_functions.yaml schema dialect. Each is a
// text-to-declaration-record converter; everything downstream only sees the
// canonical declarations.Declaration shape.
package parsers

import (
	"strings"

	"github.com/gomlx/tensorgen/internal/declarations"
	"k8s.io/klog/v2"
)

// ParseFiles routes each input file to its dialect parser by filename
// pattern and concatenates the declarations in input order. Files matching
// no dialect are skipped with a warning: the build system passes the whole
// metadata file list and not every entry concerns this generator.
func ParseFiles(paths []string) ([]*declarations.Declaration, error) {
	var decls []*declarations.Declaration
	for _, path := range paths {
		var (
			parsed []*declarations.Declaration
			err    error
		)
		switch {
		case strings.HasSuffix(path, ".cwrap"):
			parsed, err = ParseCwrap(path)
		case strings.HasSuffix(path, "nn.yaml") || strings.HasSuffix(path, ".h"):
			parsed, err = ParseNN(path)
		case strings.HasSuffix(path, "native_functions.yaml"):
			parsed, err = ParseNative(path)
		default:
			klog.Warningf("skipping %q: not a recognized declaration dialect", path)
			continue
		}
		if err != nil {
			return nil, err
		}
		klog.V(1).Infof("parsed %d declarations from %s", len(parsed), path)
		decls = append(decls, parsed...)
	}
	return decls, nil
}
