// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package codegen

import (
	"fmt"

	"github.com/gomlx/tensorgen/internal/backends"
	"github.com/gomlx/tensorgen/internal/declarations"
	"k8s.io/klog/v2"
)

// Derived is the result of specializing the declaration list for one
// (backend, density) pair.
type Derived struct {
	// TypeDeclarations and TypeDefinitions are the per-type dispatch
	// class fragments.
	TypeDeclarations []string
	TypeDefinitions  []string

	// Registrations holds exactly one entry per declaration applicable to
	// this pair.
	Registrations []OperatorRegistration

	// LegacyDeclarations and LegacyDefinitions accumulate the legacy
	// wrapper fragments; only CPU and CUDA ever produce them.
	LegacyDeclarations []string
	LegacyDefinitions  []string
}

// CreateDerived specializes every applicable declaration for the pair
// described by env, synthesizing the dispatch-class declaration and
// definition text and one operator registration per declaration.
func CreateDerived(env *DerivedEnv, decls []*declarations.Declaration) *Derived {
	derived := &Derived{}
	for _, decl := range decls {
		if !decl.AppliesTo(env.Pair) {
			continue
		}
		if decl.Legacy && env.Pair.Density == backends.Dense &&
			(env.Pair.Backend == backends.CPU || env.Pair.Backend == backends.CUDA) {
			derived.LegacyDeclarations = append(derived.LegacyDeclarations, legacyDeclaration(decl))
			derived.LegacyDefinitions = append(derived.LegacyDefinitions, legacyDefinition(env, decl))
		}
		derived.TypeDeclarations = append(derived.TypeDeclarations, typeDeclaration(env, decl))
		derived.TypeDefinitions = append(derived.TypeDefinitions, typeDefinition(env, decl))
		derived.Registrations = append(derived.Registrations, registration(env, decl))
	}
	klog.V(1).Infof("%s: %d operators, %d legacy wrappers",
		env.FullBackend, len(derived.Registrations), len(derived.LegacyDeclarations))
	return derived
}

// typeDeclaration renders the dispatch-class member declaration.
func typeDeclaration(env *DerivedEnv, decl *declarations.Declaration) string {
	// The generic pass fixed the signature text; derived types must stay
	// consistent with TypeDefault.
	if decl.MethodDeclaration != "" {
		return decl.MethodDeclaration
	}
	return fmt.Sprintf("static %s %s(%s);", decl.ReturnType(), decl.Name, decl.FormalsList(true))
}

// typeDefinition renders the dispatch-class member calling into the
// backend's kernel, with a device guard on CUDA-like backends.
func typeDefinition(env *DerivedEnv, decl *declarations.Declaration) string {
	kernel := kernelCall(env, decl)
	body := ""
	if env.IsCUDA && guardedArgument(decl) != "" {
		body += fmt.Sprintf("  const OptionalDeviceGuard device_guard(device_of(%s));\n", guardedArgument(decl))
	}
	if len(decl.Returns) == 0 {
		body += fmt.Sprintf("  %s;", kernel)
	} else {
		body += fmt.Sprintf("  return %s;", kernel)
	}
	return fmt.Sprintf("%s %s::%s(%s) {\n%s\n}\n",
		decl.ReturnType(), env.Type, decl.Name, decl.FormalsList(false), body)
}

// kernelCall is the expression invoking the backend's implementation of the
// declaration: the native kernel from the dispatch table, or the legacy
// wrapper for cwrap/nn declarations.
func kernelCall(env *DerivedEnv, decl *declarations.Declaration) string {
	if decl.Legacy {
		return fmt.Sprintf("at::native::legacy::%s::%s(%s)",
			lowerBackend(env), decl.Name, decl.ActualsList())
	}
	return fmt.Sprintf("at::native::%s(%s)", decl.KernelFor(env.FullBackend), decl.ActualsList())
}

// guardedArgument names the tensor argument whose device scopes the CUDA
// device guard, or "" when the declaration has no tensor to guard on.
func guardedArgument(decl *declarations.Declaration) string {
	for _, arg := range decl.Arguments {
		if arg.Type == "Tensor" {
			return arg.Name
		}
	}
	return ""
}

func lowerBackend(env *DerivedEnv) string {
	if env.Pair.Backend == backends.CUDA {
		return "cuda"
	}
	return "cpu"
}

// legacyDeclaration and legacyDefinition render the wrapper pair emitted
// into the dedicated LegacyTHFunctions files.
func legacyDeclaration(decl *declarations.Declaration) string {
	return fmt.Sprintf("CAFFE2_API %s %s(%s);", decl.ReturnType(), decl.Name, decl.FormalsList(true))
}

func legacyDefinition(env *DerivedEnv, decl *declarations.Declaration) string {
	return fmt.Sprintf("%s %s(%s) {\n  return th::%s(%s);\n}\n",
		decl.ReturnType(), decl.Name, decl.FormalsList(false),
		decl.KernelFor(env.FullBackend), decl.ActualsList())
}

// registration builds the (declaration, backend) operator registration: the
// kernel binding subject to the whitelist, and the schema-only form that is
// always emitted.
func registration(env *DerivedEnv, decl *declarations.Declaration) OperatorRegistration {
	return OperatorRegistration{
		OperatorName: decl.OperatorName,
		RegistrationCode: fmt.Sprintf(
			".op(torch::RegisterOperators::options().schema(%q).impl_unboxedOnlyKernel<decltype(%s::%s), &%s::%s>(DispatchKey::%s).aliasAnalysis(c10::AliasAnalysisKind::FROM_SCHEMA))",
			decl.SchemaString, env.Type, decl.Name, env.Type, decl.Name, env.FullBackend),
		SchemaRegistrationCode: schemaRegistration(decl),
	}
}

// schemaRegistration is backend-independent on purpose: identical text from
// every backend collapses to one entry in the deduplicated schema table.
func schemaRegistration(decl *declarations.Declaration) string {
	return fmt.Sprintf(".op(%q)", decl.SchemaString)
}
