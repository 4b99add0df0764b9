// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the finite set of compute backends and tensor
// densities the generator knows how to specialize for, and the derived
// identifiers (device type, type-switch tag) each pair maps to.
package backends

import (
	"github.com/gomlx/exceptions"
)

// Backend is a compute-target + storage-layout identity for which a distinct
// dispatch path is generated.
type Backend int

const (
	CPU Backend = iota
	CUDA
	QuantizedCPU
	QuantizedCUDA
	Vulkan
)

// Density is the tensor storage discipline, orthogonal to Backend.
type Density int

const (
	Dense Density = iota
	Sparse
	Mkldnn
)

func (b Backend) String() string {
	switch b {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case QuantizedCPU:
		return "QuantizedCPU"
	case QuantizedCUDA:
		return "QuantizedCUDA"
	case Vulkan:
		return "Vulkan"
	}
	exceptions.Panicf("unknown Backend(%d)", int(b))
	return ""
}

func (d Density) String() string {
	switch d {
	case Dense:
		return "Dense"
	case Sparse:
		return "Sparse"
	case Mkldnn:
		return "Mkldnn"
	}
	exceptions.Panicf("unknown Density(%d)", int(d))
	return ""
}

// Tag is the prefix a density contributes to generated type names: Dense
// contributes nothing, so "CPUType" and not "DenseCPUType".
func (d Density) Tag() string {
	if d == Dense {
		return ""
	}
	return d.String()
}

// DeviceType maps a backend to the device its kernels run on: quantized
// backends dispatch on their underlying device.
func (b Backend) DeviceType() string {
	switch b {
	case QuantizedCPU:
		return "CPU"
	case QuantizedCUDA:
		return "CUDA"
	default:
		return b.String()
	}
}

// IsCUDA reports whether the backend requires the CUDA runtime (device
// guards, CUDA allocator, THC state).
func (b Backend) IsCUDA() bool {
	return b == CUDA || b == QuantizedCUDA
}

// Pair is one (backend, density) combination to generate for.
type Pair struct {
	Backend Backend
	Density Density
}

// FullName is the density-tagged backend name used in generated type names
// and in the backend whitelist, e.g. "CPU", "SparseCUDA", "QuantizedCPU".
func (p Pair) FullName() string {
	return p.Density.Tag() + p.Backend.String()
}

// TypeName is the generated dispatch class name, e.g. "SparseCUDAType".
func (p Pair) TypeName() string {
	return p.FullName() + "Type"
}

// Pairs returns the (backend, density) combinations to generate, in the
// fixed order the whole pipeline iterates them. Mkldnn only exists for CPU,
// quantized backends are dense-only, and Vulkan is opt-in.
//
// Output ordering across the run is derived from this order, so it must not
// change without a corresponding update to the generated-file consumers.
func Pairs(withVulkan bool) []Pair {
	pairs := make([]Pair, 0, 10)
	for _, backend := range []Backend{CPU, CUDA} {
		for _, density := range []Density{Dense, Sparse, Mkldnn} {
			if density == Mkldnn && backend != CPU {
				continue
			}
			pairs = append(pairs, Pair{backend, density})
		}
	}
	for _, backend := range []Backend{QuantizedCPU, QuantizedCUDA} {
		pairs = append(pairs, Pair{backend, Dense})
	}
	if withVulkan {
		pairs = append(pairs, Pair{Vulkan, Dense})
	}
	return pairs
}
