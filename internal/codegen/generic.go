// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package codegen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/tensorgen/internal/declarations"
	"k8s.io/klog/v2"
)

// CreateGeneric produces the backend-independent artifacts: the TypeDefault
// method table covering every declaration (the implementation used when a
// backend provides no override), the public function surface, the Tensor
// method surface and the native-function declarations.
//
// It also attaches the finalized method/function declaration text to each
// declaration, which the per-backend pass reads to stay
// signature-consistent. It must therefore run exactly once, before any call
// to CreateDerived.
//
// The returned registrations are the catch-all bindings for declarations
// with no backend dispatch table of their own.
func CreateGeneric(top *TopEnv, decls []*declarations.Declaration) []OperatorRegistration {
	var regs []OperatorRegistration
	for _, decl := range decls {
		decl.MethodDeclaration = fmt.Sprintf("static %s %s(%s);",
			decl.ReturnType(), decl.Name, decl.FormalsList(true))
		decl.FunctionDeclaration = fmt.Sprintf("CAFFE2_API %s %s(%s);",
			decl.ReturnType(), decl.Name, decl.FormalsList(true))

		top.TypeMethodDeclarations = append(top.TypeMethodDeclarations, decl.MethodDeclaration)
		top.TypeMethodDefinitions = append(top.TypeMethodDefinitions, defaultDefinition(decl))
		top.NativeFunctionDeclarations = append(top.NativeFunctionDeclarations, nativeDeclarations(decl)...)
		top.ATenOps = append(top.ATenOps,
			fmt.Sprintf("{%q, %q},", decl.OperatorName, decl.OverloadName))

		if slices.Contains(decl.Variants, "method") {
			top.TensorMethodDeclarations = append(top.TensorMethodDeclarations, tensorMethodDeclaration(decl))
			top.TensorMethodDefinitions = append(top.TensorMethodDefinitions, tensorMethodDefinition(decl))
		}
		if slices.Contains(decl.Variants, "function") {
			top.FunctionDeclarations = append(top.FunctionDeclarations, decl.FunctionDeclaration)
			top.FunctionDefinitions = append(top.FunctionDefinitions, functionDefinition(decl))
		}

		if len(decl.Dispatch) == 0 && !decl.Legacy {
			regs = append(regs, OperatorRegistration{
				OperatorName: decl.OperatorName,
				RegistrationCode: fmt.Sprintf(
					".op(torch::RegisterOperators::options().schema(%q).catchAllKernel<decltype(TypeDefault::%s), &TypeDefault::%s>().aliasAnalysis(c10::AliasAnalysisKind::FROM_SCHEMA))",
					decl.SchemaString, decl.Name, decl.Name),
				SchemaRegistrationCode: schemaRegistration(decl),
			})
		}
	}
	klog.V(1).Infof("generic pass: %d declarations, %d catch-all registrations", len(decls), len(regs))
	return regs
}

// defaultDefinition is the TypeDefault member: the implementation every
// backend falls back to when it has no override.
func defaultDefinition(decl *declarations.Declaration) string {
	call := fmt.Sprintf("at::native::%s(%s)", decl.Name, decl.ActualsList())
	if len(decl.Returns) == 0 {
		return fmt.Sprintf("%s TypeDefault::%s(%s) {\n  %s;\n}\n",
			decl.ReturnType(), decl.Name, decl.FormalsList(false), call)
	}
	return fmt.Sprintf("%s TypeDefault::%s(%s) {\n  return %s;\n}\n",
		decl.ReturnType(), decl.Name, decl.FormalsList(false), call)
}

// tensorMethodDeclaration and tensorMethodDefinition build the public
// `Tensor::op(...)` method surface; the receiver replaces the leading `self`
// argument.
func tensorMethodDeclaration(decl *declarations.Declaration) string {
	return fmt.Sprintf("%s %s(%s) const;",
		decl.ReturnType(), decl.Name, methodFormals(decl, true))
}

func tensorMethodDefinition(decl *declarations.Declaration) string {
	return fmt.Sprintf("%s Tensor::%s(%s) const {\n  return TypeDefault::%s(%s);\n}\n",
		decl.ReturnType(), decl.Name, methodFormals(decl, false),
		decl.Name, methodActuals(decl))
}

func functionDefinition(decl *declarations.Declaration) string {
	return fmt.Sprintf("%s %s(%s) {\n  return TypeDefault::%s(%s);\n}\n",
		decl.ReturnType(), decl.Name, decl.FormalsList(false),
		decl.Name, decl.ActualsList())
}

// methodFormals drops the receiver argument from the formal list.
func methodFormals(decl *declarations.Declaration, withDefaults bool) string {
	trimmed := *decl
	if len(trimmed.Arguments) > 0 && trimmed.Arguments[0].Name == "self" {
		trimmed.Arguments = trimmed.Arguments[1:]
	}
	return trimmed.FormalsList(withDefaults)
}

// methodActuals forwards the receiver as `self`.
func methodActuals(decl *declarations.Declaration) string {
	actuals := make([]string, 0, len(decl.Arguments))
	for i, arg := range decl.Arguments {
		if i == 0 && arg.Name == "self" {
			actuals = append(actuals, "const_cast<Tensor&>(*this)")
			continue
		}
		actuals = append(actuals, arg.Name)
	}
	return strings.Join(actuals, ", ")
}

// nativeDeclarations lists the prototypes of every kernel symbol the
// declaration can dispatch to, deduplicated and in deterministic order.
func nativeDeclarations(decl *declarations.Declaration) []string {
	kernels := []string{decl.Name}
	for _, backend := range decl.Backends {
		if kernel, found := decl.Dispatch[backend]; found && !slices.Contains(kernels, kernel) {
			kernels = append(kernels, kernel)
		}
	}
	prototypes := make([]string, len(kernels))
	for i, kernel := range kernels {
		prototypes[i] = fmt.Sprintf("CAFFE2_API %s %s(%s);",
			decl.ReturnType(), kernel, decl.FormalsList(true))
	}
	return prototypes
}
