// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package codegen is the generator's core: it specializes canonical operator
// declarations per (backend, density) pair, produces the backend-independent
// default dispatch surface, and aggregates the operator-registration tables.
package codegen

import (
	"github.com/gomlx/tensorgen/internal/backends"
	"github.com/gomlx/tensorgen/internal/codetemplate"
)

// OperatorRegistration binds one operator identity to one concrete backend
// kernel, plus the backend-independent schema-only registration that is
// always producible.
type OperatorRegistration struct {
	// OperatorName is the whitelist/grouping key: namespace::op, no
	// overload suffix.
	OperatorName string

	// RegistrationCode registers the concrete kernel; subject to the
	// operator whitelist.
	RegistrationCode string

	// SchemaRegistrationCode registers the schema without binding a
	// kernel; emitted for every operator regardless of whitelist.
	SchemaRegistrationCode string
}

// TopEnv accumulates the shared, backend-independent artifacts across the
// whole run. All lists are append-only during generation and the pipeline is
// single-threaded, so append order (backend iteration order times
// declaration order) is the output order.
type TopEnv struct {
	CPUTypeHeaders  []string
	CUDATypeHeaders []string
	TypeIDs         []string

	FunctionRegistrations []string

	TypeMethodDeclarations []string
	TypeMethodDefinitions  []string

	TensorMethodDeclarations []string
	TensorMethodDefinitions  []string

	FunctionDeclarations []string
	FunctionDefinitions  []string

	NativeFunctionDeclarations []string

	ATenOps []string
}

// DerivedEnv holds the identifiers and device-specific constants one
// (backend, density) expansion renders with.
type DerivedEnv struct {
	Pair backends.Pair

	// FullBackend is the density-tagged backend name ("SparseCUDA"); it
	// doubles as the DispatchKey and TypeID tag in generated code.
	FullBackend string
	// Type is the generated dispatch class name ("SparseCUDAType").
	Type string
	// DeviceType the kernels run on ("CPU" or "CUDA").
	DeviceType string

	IsCUDA bool

	THHeaders            []string
	ExtraCUDAHeaders     []string
	LegacyTHHeaders      []string
	StorageTensorHeaders []string

	State         []string
	StorageDevice string
	Generator     string
	Allocator     string
}

// NewDerivedEnv computes the derived identifiers and selects the
// device-specific constant bundle for one (backend, density) pair.
// CPU-like backends never acquire the CUDA header/guard bundle; CUDA-like
// ones always do, with rocm selecting the HIP-flavored header names.
func NewDerivedEnv(pair backends.Pair, rocm bool) *DerivedEnv {
	env := &DerivedEnv{
		Pair:        pair,
		FullBackend: pair.FullName(),
		Type:        pair.TypeName(),
		DeviceType:  pair.Backend.DeviceType(),
		IsCUDA:      pair.Backend.IsCUDA(),
	}
	if pair.Density != backends.Sparse {
		env.StorageTensorHeaders = []string{"#include <c10/core/TensorImpl.h>"}
	}
	if env.IsCUDA {
		env.ExtraCUDAHeaders = []string{"#include <ATen/DeviceGuard.h>"}
		if rocm {
			env.THHeaders = []string{
				"#include <THH/THH.h>",
				"#include <THH/THHTensor.hpp>",
				"#include <THHUNN/THHUNN.h>",
				"#undef THNN_",
				"#undef THCIndexTensor_",
			}
			env.ExtraCUDAHeaders = append(env.ExtraCUDAHeaders,
				"#include <ATen/hip/ATenHIPGeneral.h>",
				"#include <ATen/hip/HIPDevice.h>",
				"#include <ATen/hip/HIPContext.h>")
		} else {
			env.THHeaders = []string{
				"#include <THC/THC.h>",
				"#include <THC/THCTensor.hpp>",
				"#include <THCUNN/THCUNN.h>",
				"#undef THNN_",
				"#undef THCIndexTensor_",
			}
			env.ExtraCUDAHeaders = append(env.ExtraCUDAHeaders,
				"#include <ATen/cuda/ATenCUDAGeneral.h>",
				"#include <ATen/cuda/CUDADevice.h>",
				"#include <ATen/cuda/CUDAContext.h>")
		}
		env.State = []string{"globalContext().getTHCState()"}
		env.StorageDevice = "return storage->device;"
		env.Generator = "CUDAGeneratorImpl"
		env.Allocator = "at::cuda::getCUDADeviceAllocator()"
	} else {
		env.THHeaders = []string{
			"#include <TH/TH.h>",
			"#include <TH/THTensor.hpp>",
		}
		env.StorageDevice = `throw std::runtime_error("CPU storage has no device");`
		env.Generator = "CPUGeneratorImpl"
		env.Allocator = "getCPUAllocator()"
	}
	return env
}

// boolLiteral spells the C++ bool literal.
func boolLiteral(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// TemplateEnv builds the rendering environment for the derived-type
// templates from the specialized code fragments of this pair.
func (env *DerivedEnv) TemplateEnv(typeDecls, typeDefs, registrations []string) codetemplate.Env {
	return codetemplate.Env{
		"Type":                             env.Type,
		"Backend":                          env.FullBackend,
		"DeviceType":                       env.DeviceType,
		"isCUDA":                           boolLiteral(env.IsCUDA),
		"th_headers":                       env.THHeaders,
		"extra_cuda_headers":               env.ExtraCUDAHeaders,
		"legacy_th_headers":                env.LegacyTHHeaders,
		"storage_tensor_headers":           env.StorageTensorHeaders,
		"state":                            env.State,
		"storage_device":                   env.StorageDevice,
		"Generator":                        env.Generator,
		"allocator":                        env.Allocator,
		"type_derived_method_declarations": typeDecls,
		"type_derived_method_definitions":  typeDefs,
		"function_registrations":           registrations,
	}
}
