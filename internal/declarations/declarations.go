// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package declarations holds the canonical, backend-agnostic description of
// one tensor operator: its signature, behavior flags and dispatch hooks.
//
// The three front-end parsers (cwrap, nn, native) all emit this shape;
// Normalize makes the union uniform before any generation runs.
package declarations

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/tensorgen/internal/backends"
)

// Argument is one parameter of an operator.
type Argument struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Default is the default value literal, when the argument has one.
	Default    string `yaml:"default,omitempty"`
	HasDefault bool   `yaml:"-"`

	// IsOutput marks an output buffer argument (e.g. the `out` tensor of
	// `add.out`): it is written to, not read.
	IsOutput bool `yaml:"output,omitempty"`

	// KwargOnly marks arguments after the `*` separator of the native
	// schema dialect.
	KwargOnly bool `yaml:"kwarg_only,omitempty"`
}

// Return is one return value of an operator. After normalization Name is
// always set.
type Return struct {
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type"`
}

// Declaration is the canonical operator description all generation stages
// consume. The yaml tags define the record as it appears in the
// Declarations.yaml manifest; fields the manifest does not carry are
// tagged away.
type Declaration struct {
	// Name of the underlying implementation symbol, e.g. "add_out".
	Name string `yaml:"name"`

	// OperatorName is the namespaced public identity without overload
	// suffix, e.g. "aten::add". Whitelists and per-operator grouping key
	// on it.
	OperatorName string `yaml:"operator_name"`

	// OverloadName qualifies the overload, e.g. "Tensor" or "out".
	OverloadName string `yaml:"overload_name,omitempty"`

	// SchemaString is the full function schema,
	// e.g. `aten::add.Tensor(Tensor self, Tensor other) -> Tensor`.
	SchemaString string `yaml:"schema_string"`

	Arguments []Argument `yaml:"arguments"`
	Returns   []Return   `yaml:"returns"`

	// Inplace marks operators that mutate and return their receiver
	// (trailing-underscore ops like `add_`).
	Inplace bool `yaml:"inplace"`

	Deprecated bool     `yaml:"deprecated,omitempty"`
	Variants   []string `yaml:"variants,omitempty"`

	// Buffers lists intermediate buffers of legacy nn operators. A nil
	// value is dropped from the manifest entirely, never serialized as
	// null.
	Buffers []string `yaml:"buffers,omitempty"`

	// Legacy marks declarations from the cwrap/nn dialects, which get
	// their wrappers emitted into the dedicated LegacyTHFunctions file
	// pair instead of the derived Type files.
	Legacy bool `yaml:"-"`

	// Backends lists the full backend names this declaration has kernels
	// for; empty means every backend. Densities lists the densities it
	// supports; empty means Dense only.
	Backends  []string `yaml:"-"`
	Densities []string `yaml:"-"`

	// Dispatch maps a full backend name to the native kernel symbol
	// implementing the operator there, e.g. {"CPU": "add_cpu"}.
	Dispatch map[string]string `yaml:"-"`

	// BackendSelect marks operators whose backend is computed from
	// runtime arguments (factory functions taking TensorOptions) instead
	// of fixed at generation time.
	BackendSelect bool `yaml:"-"`

	// Filled by the generic generator before per-backend expansion, so
	// that derived types stay signature-consistent with TypeDefault.
	MethodDeclaration   string `yaml:"-"`
	FunctionDeclaration string `yaml:"-"`
}

// QualifiedName is the overload-qualified schema name,
// e.g. "aten::add.out".
func (d *Declaration) QualifiedName() string {
	if d.OverloadName == "" {
		return d.OperatorName
	}
	return d.OperatorName + "." + d.OverloadName
}

// AppliesTo reports whether this declaration has a backend-bound
// implementation for the given (backend, density) pair. Declarations without
// explicit backend bindings are served by TypeDefault's catch-all
// registration only, never by derived types.
func (d *Declaration) AppliesTo(pair backends.Pair) bool {
	if len(d.Backends) == 0 {
		return false
	}
	if len(d.Densities) == 0 {
		if pair.Density != backends.Dense {
			return false
		}
	} else if !slices.Contains(d.Densities, pair.Density.String()) {
		return false
	}
	return slices.Contains(d.Backends, pair.FullName())
}

// KernelFor returns the native kernel symbol bound to the given backend,
// falling back to the declaration's own name when no dispatch entry exists.
func (d *Declaration) KernelFor(fullBackend string) string {
	if kernel, found := d.Dispatch[fullBackend]; found {
		return kernel
	}
	return d.Name
}

// ReturnType is the C++ return type of the generated wrapper.
func (d *Declaration) ReturnType() string {
	switch len(d.Returns) {
	case 0:
		return "void"
	case 1:
		return cppType(d.Returns[0].Type)
	default:
		parts := make([]string, len(d.Returns))
		for i, ret := range d.Returns {
			parts[i] = cppType(ret.Type)
		}
		return "std::tuple<" + strings.Join(parts, ",") + ">"
	}
}

// FormalsList renders the C++ formal parameter list, with or without
// default values (definitions must not repeat defaults).
func (d *Declaration) FormalsList(withDefaults bool) string {
	formals := make([]string, len(d.Arguments))
	for i, arg := range d.Arguments {
		formal := cppType(arg.Type) + " " + arg.Name
		if withDefaults && arg.HasDefault {
			formal += "=" + arg.Default
		}
		formals[i] = formal
	}
	return strings.Join(formals, ", ")
}

// ActualsList renders the argument names for a call forwarding the formals.
func (d *Declaration) ActualsList() string {
	actuals := make([]string, len(d.Arguments))
	for i, arg := range d.Arguments {
		actuals[i] = arg.Name
	}
	return strings.Join(actuals, ", ")
}

// buildSchemaString synthesizes the function schema for declarations whose
// dialect does not carry one verbatim.
func (d *Declaration) buildSchemaString() string {
	var b strings.Builder
	b.WriteString(d.QualifiedName())
	b.WriteString("(")
	keywordMarkerWritten := false
	for i, arg := range d.Arguments {
		if i > 0 {
			b.WriteString(", ")
		}
		if arg.KwargOnly && !keywordMarkerWritten {
			b.WriteString("*, ")
			keywordMarkerWritten = true
		}
		b.WriteString(arg.Type)
		b.WriteString(" ")
		b.WriteString(arg.Name)
		if arg.HasDefault {
			b.WriteString("=")
			b.WriteString(arg.Default)
		}
	}
	b.WriteString(") -> ")
	switch len(d.Returns) {
	case 0:
		b.WriteString("()")
	case 1:
		b.WriteString(d.Returns[0].Type)
	default:
		types := make([]string, len(d.Returns))
		for i, ret := range d.Returns {
			types[i] = ret.Type
		}
		b.WriteString("(" + strings.Join(types, ", ") + ")")
	}
	return b.String()
}

// cppType maps a schema type to the C++ type spelled in generated wrappers.
func cppType(schemaType string) string {
	switch schemaType {
	case "Tensor":
		return "Tensor"
	case "Tensor[]", "TensorList":
		return "TensorList"
	case "Scalar":
		return "Scalar"
	case "ScalarType":
		return "ScalarType"
	case "TensorOptions":
		return "const TensorOptions &"
	case "int":
		return "int64_t"
	case "int[]", "IntArrayRef":
		return "IntArrayRef"
	case "float":
		return "double"
	case "bool":
		return "bool"
	case "str":
		return "std::string"
	case "Generator":
		return "Generator *"
	default:
		return schemaType
	}
}

// String implements fmt.Stringer, for logs only.
func (d *Declaration) String() string {
	return fmt.Sprintf("%s(%d args, %d returns)", d.QualifiedName(), len(d.Arguments), len(d.Returns))
}
