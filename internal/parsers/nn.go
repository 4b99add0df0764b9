// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"os"
	"strings"

	"github.com/gomlx/tensorgen/internal/declarations"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// nnEntry mirrors one record of the neural-network operator dialect
// (nn.yaml): a signature plus the C++ module class implementing it.
type nnEntry struct {
	Name    string   `yaml:"name"`
	CName   string   `yaml:"cname"`
	Buffers []string `yaml:"buffers"`
}

// ParseNN converts an nn.yaml file into canonical declarations. The
// companion THNN headers passed alongside the yaml carry no declarations of
// their own and yield nothing.
func ParseNN(path string) ([]*declarations.Declaration, error) {
	if strings.HasSuffix(path, ".h") {
		return nil, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read nn file %q", path)
	}
	var entries []nnEntry
	if err := yaml.Unmarshal(contents, &entries); err != nil {
		return nil, errors.Wrapf(err, "failed to parse nn file %q", path)
	}
	decls := make([]*declarations.Declaration, 0, 2*len(entries))
	for _, entry := range entries {
		decl, err := entry.toDeclaration()
		if err != nil {
			return nil, errors.WithMessagef(err, "in %q", path)
		}
		decls = append(decls, decl)
		if entry.CName != "" {
			decls = append(decls, backwardDeclaration(decl, entry))
		}
	}
	return decls, nil
}

func (entry nnEntry) toDeclaration() (*declarations.Declaration, error) {
	name, overload, args, rets, err := parseSignature(entry.Name)
	if err != nil {
		return nil, err
	}
	if len(rets) == 0 {
		// nn operators return their output tensor even when the signature
		// leaves it implicit.
		rets = []declarations.Return{{Type: "Tensor"}}
	}
	decl := &declarations.Declaration{
		Name:         name,
		OperatorName: "aten::" + name,
		OverloadName: overload,
		Arguments:    args,
		Returns:      rets,
		Inplace:      strings.HasSuffix(name, "_"),
		Legacy:       true,
		Buffers:      entry.Buffers,
	}
	if entry.CName != "" {
		decl.Dispatch = map[string]string{
			"CPU":  entry.CName + "_updateOutput",
			"CUDA": entry.CName + "_updateOutput",
		}
	}
	return decl, nil
}

// backwardDeclaration synthesizes the gradient companion of an nn operator:
// same inputs prefixed with the incoming gradient, dispatching to the
// module's updateGradInput kernel.
func backwardDeclaration(forward *declarations.Declaration, entry nnEntry) *declarations.Declaration {
	name := forward.Name + "_backward"
	arguments := make([]declarations.Argument, 0, len(forward.Arguments)+1)
	arguments = append(arguments, declarations.Argument{Name: "grad_output", Type: "Tensor"})
	for _, arg := range forward.Arguments {
		// Defaults make no sense on a backward pass; autograd always
		// supplies every argument the forward saw.
		arg.Default = ""
		arg.HasDefault = false
		arguments = append(arguments, arg)
	}
	return &declarations.Declaration{
		Name:         name,
		OperatorName: "aten::" + name,
		OverloadName: forward.OverloadName,
		Arguments:    arguments,
		Returns:      []declarations.Return{{Name: "grad_input", Type: "Tensor"}},
		Legacy:       true,
		Buffers:      forward.Buffers,
		Dispatch: map[string]string{
			"CPU":  entry.CName + "_updateGradInput",
			"CUDA": entry.CName + "_updateGradInput",
		},
	}
}
