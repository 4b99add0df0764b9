// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package codegen

import (
	"fmt"

	"github.com/gomlx/tensorgen/internal/codetemplate"
	"github.com/gomlx/tensorgen/internal/declarations"
	"k8s.io/klog/v2"
)

// BackendSelect produces the dynamic-dispatch registrations for operators
// whose concrete backend must be computed from runtime argument inspection
// (factory functions taking TensorOptions) rather than fixed at generation
// time.
type BackendSelect struct {
	MethodDefinitions []string
	Registrations     []string
}

// CreateBackendSelect collects the backend-select wrappers for every
// eligible declaration, in declaration order.
func CreateBackendSelect(decls []*declarations.Declaration) *BackendSelect {
	bs := &BackendSelect{}
	for _, decl := range decls {
		if !needsBackendSelect(decl) {
			continue
		}
		bs.MethodDefinitions = append(bs.MethodDefinitions, backendSelectDefinition(decl))
		bs.Registrations = append(bs.Registrations, fmt.Sprintf(
			".op(torch::RegisterOperators::options().schema(%q).impl_unboxedOnlyKernel<decltype(%s), &%s>(DispatchKey::BackendSelect).aliasAnalysis(c10::AliasAnalysisKind::FROM_SCHEMA))",
			decl.SchemaString, decl.Name, decl.Name))
	}
	klog.V(1).Infof("backend-select: %d operators", len(bs.MethodDefinitions))
	return bs
}

// TemplateEnv builds the rendering environment for
// BackendSelectRegister.cpp.
func (bs *BackendSelect) TemplateEnv() codetemplate.Env {
	return codetemplate.Env{
		"backend_select_method_definitions":     bs.MethodDefinitions,
		"backend_select_function_registrations": bs.Registrations,
	}
}

// needsBackendSelect: factory functions carry a TensorOptions argument that
// determines the backend at call time.
func needsBackendSelect(decl *declarations.Declaration) bool {
	if decl.BackendSelect {
		return true
	}
	for _, arg := range decl.Arguments {
		if arg.Type == "TensorOptions" {
			return true
		}
	}
	return false
}

// backendSelectDefinition renders the wrapper that computes the dispatch key
// from the options argument and re-dispatches statically.
func backendSelectDefinition(decl *declarations.Declaration) string {
	options := "options"
	for _, arg := range decl.Arguments {
		if arg.Type == "TensorOptions" {
			options = arg.Name
			break
		}
	}
	return fmt.Sprintf(
		"%s %s(%s) {\n  DispatchKey key = c10::computeDispatchKey(%s);\n  return globalATenDispatch().getTypeForDispatchKey(key).%s(%s);\n}\n",
		decl.ReturnType(), decl.Name, decl.FormalsList(false), options,
		decl.Name, decl.ActualsList())
}
