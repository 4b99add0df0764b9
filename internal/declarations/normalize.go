// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package declarations

import (
	"strconv"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Normalize makes the union of all parser outputs uniform: every optional
// field present with its default, every return named. It runs exactly once,
// before the generic generator and any per-backend expansion, because later
// stages assume finalized names.
//
// Returns the same slice, mutated in place.
func Normalize(decls []*Declaration) []*Declaration {
	for _, decl := range decls {
		if len(decl.Variants) == 0 {
			decl.Variants = []string{"function"}
		}
		if decl.Legacy && len(decl.Backends) == 0 {
			// Legacy TH wrappers only ever existed for the two legacy
			// backends.
			decl.Backends = []string{"CPU", "CUDA"}
		}
		nameReturns(decl)
		if decl.SchemaString == "" {
			decl.SchemaString = decl.buildSchemaString()
		}
	}
	klog.V(1).Infof("normalized %d declarations", len(decls))
	return decls
}

// nameReturns applies the return-naming invariant: an inplace op's return is
// `self`, a sole unnamed return is `out`, multiple unnamed returns are
// `out0..outN`.
//
// A declaration mixing a named return with a later unnamed one has no
// defined naming scheme; none of the recognized dialects can produce it, so
// hitting one is a generator bug and panics rather than guessing.
func nameReturns(decl *Declaration) {
	hasNamedRet := false
	for i := range decl.Returns {
		ret := &decl.Returns[i]
		if ret.Name == "" {
			if hasNamedRet {
				exceptions.Panicf(
					"declaration %s: unnamed return #%d follows a named one, cannot synthesize a name",
					decl.QualifiedName(), i)
			}
			switch {
			case decl.Inplace:
				ret.Name = "self"
			case len(decl.Returns) == 1:
				ret.Name = "out"
			default:
				ret.Name = "out" + strconv.Itoa(i)
			}
		} else {
			hasNamedRet = true
		}
	}
}
