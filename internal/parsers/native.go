// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"os"
	"strings"

	"github.com/gomlx/tensorgen/internal/declarations"
	"github.com/gomlx/tensorgen/pkg/support/sets"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// nativeEntry mirrors one record of the native_functions.yaml dialect.
type nativeEntry struct {
	Func     string            `yaml:"func"`
	Variants string            `yaml:"variants"`
	Dispatch map[string]string `yaml:"dispatch"`
}

// ParseNative converts a native_functions.yaml file into canonical
// declarations.
func ParseNative(path string) ([]*declarations.Declaration, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read native functions file %q", path)
	}
	var entries []nativeEntry
	if err := yaml.Unmarshal(contents, &entries); err != nil {
		return nil, errors.Wrapf(err, "failed to parse native functions file %q", path)
	}
	decls := make([]*declarations.Declaration, 0, len(entries))
	for _, entry := range entries {
		decl, err := entry.toDeclaration()
		if err != nil {
			return nil, errors.WithMessagef(err, "in %q", path)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func (entry nativeEntry) toDeclaration() (*declarations.Declaration, error) {
	name, overload, args, rets, err := parseSignature(entry.Func)
	if err != nil {
		return nil, err
	}
	decl := &declarations.Declaration{
		Name:         name,
		OperatorName: "aten::" + name,
		OverloadName: overload,
		SchemaString: "aten::" + entry.Func,
		Arguments:    args,
		Returns:      rets,
		Inplace:      strings.HasSuffix(name, "_"),
		Dispatch:     entry.Dispatch,
	}
	if entry.Variants != "" {
		for _, variant := range strings.Split(entry.Variants, ",") {
			decl.Variants = append(decl.Variants, strings.TrimSpace(variant))
		}
	}
	if len(entry.Dispatch) > 0 {
		decl.Backends = sets.Sorted(sets.MakeWith(mapKeys(entry.Dispatch)...))
		decl.Densities = dispatchDensities(decl.Backends)
	}
	return decl, nil
}

// dispatchDensities derives the densities a declaration supports from the
// density prefixes of its dispatch keys.
func dispatchDensities(fullBackends []string) []string {
	densities := sets.Make[string]()
	for _, fullBackend := range fullBackends {
		switch {
		case strings.HasPrefix(fullBackend, "Sparse"):
			densities.Insert("Sparse")
		case strings.HasPrefix(fullBackend, "Mkldnn"):
			densities.Insert("Mkldnn")
		default:
			densities.Insert("Dense")
		}
	}
	return sets.Sorted(densities)
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
