// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/tensorgen/internal/declarations"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// cwrapEntry mirrors one `[[ ... ]]` block of the legacy cwrap dialect.
type cwrapEntry struct {
	Name      string   `yaml:"name"`
	CName     string   `yaml:"cname"`
	Backends  []string `yaml:"backends"`
	Variants  []string `yaml:"variants"`
	Return    string   `yaml:"return"`
	Arguments []string `yaml:"arguments"`
}

// ParseCwrap converts a .cwrap file into canonical declarations. The format
// is a sequence of YAML documents bracketed by `[[` / `]]` lines; anything
// outside the brackets is ignored.
func ParseCwrap(path string) ([]*declarations.Declaration, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cwrap file %q", path)
	}
	var decls []*declarations.Declaration
	for _, block := range cwrapBlocks(string(contents)) {
		var entry cwrapEntry
		if err := yaml.Unmarshal([]byte(block), &entry); err != nil {
			return nil, errors.Wrapf(err, "failed to parse cwrap block in %q", path)
		}
		decl, err := entry.toDeclaration()
		if err != nil {
			return nil, errors.WithMessagef(err, "in %q", path)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// cwrapBlocks extracts the YAML text between `[[` and `]]` marker lines.
func cwrapBlocks(contents string) []string {
	var blocks []string
	var current []string
	inBlock := false
	for _, line := range strings.Split(contents, "\n") {
		switch strings.TrimSpace(line) {
		case "[[":
			inBlock = true
			current = current[:0]
		case "]]":
			if inBlock {
				blocks = append(blocks, strings.Join(current, "\n"))
			}
			inBlock = false
		default:
			if inBlock {
				current = append(current, line)
			}
		}
	}
	return blocks
}

func (entry cwrapEntry) toDeclaration() (*declarations.Declaration, error) {
	if entry.Name == "" {
		return nil, errors.New("cwrap block has no name")
	}
	decl := &declarations.Declaration{
		Name:         entry.Name,
		OperatorName: "aten::" + entry.Name,
		Inplace:      strings.HasSuffix(entry.Name, "_"),
		Legacy:       true,
		Backends:     entry.Backends,
		Variants:     entry.Variants,
	}
	if entry.CName != "" {
		decl.Dispatch = map[string]string{}
		for _, backend := range entry.Backends {
			decl.Dispatch[backend] = entry.CName
		}
	}
	for _, field := range entry.Arguments {
		arg, err := parseCwrapArgument(field)
		if err != nil {
			return nil, errors.WithMessagef(err, "in cwrap declaration %q", entry.Name)
		}
		decl.Arguments = append(decl.Arguments, arg)
	}
	ret, inplace, err := entry.returnValue(decl)
	if err != nil {
		return nil, err
	}
	decl.Inplace = decl.Inplace || inplace
	decl.Returns = []declarations.Return{ret}
	decl.SchemaString = "aten::" + entry.Name + "(" + decl.FormalsList(true) + ") -> " + ret.Type
	return decl, nil
}

// returnValue resolves the cwrap `return:` field: a plain type, or
// `argument N` meaning the op writes and returns its N-th argument (the
// inplace/output-buffer convention of the legacy wrappers).
func (entry cwrapEntry) returnValue(decl *declarations.Declaration) (declarations.Return, bool, error) {
	ret := strings.TrimSpace(entry.Return)
	if ret == "" {
		return declarations.Return{Type: "Tensor"}, false, nil
	}
	if index, found := strings.CutPrefix(ret, "argument "); found {
		n, err := strconv.Atoi(strings.TrimSpace(index))
		if err != nil || n < 0 {
			return declarations.Return{}, false, errors.Errorf(
				"cwrap declaration %q: bad return spec %q", entry.Name, entry.Return)
		}
		if n >= len(decl.Arguments) {
			return declarations.Return{}, false, errors.Errorf(
				"cwrap declaration %q: return argument %d out of range", entry.Name, n)
		}
		decl.Arguments[n].IsOutput = true
		return declarations.Return{Type: decl.Arguments[n].Type}, true, nil
	}
	return declarations.Return{Type: mapCwrapType(ret)}, false, nil
}

// parseCwrapArgument parses `THTensor* self` or `real alpha` style fields.
func parseCwrapArgument(field string) (declarations.Argument, error) {
	var arg declarations.Argument
	typeAndName := strings.TrimSpace(field)
	if eq := strings.Index(typeAndName, "="); eq >= 0 {
		arg.Default = strings.TrimSpace(typeAndName[eq+1:])
		arg.HasDefault = true
		typeAndName = strings.TrimSpace(typeAndName[:eq])
	}
	space := strings.LastIndex(typeAndName, " ")
	if space < 0 {
		return arg, errors.Errorf("cwrap argument %q has no name", field)
	}
	arg.Type = mapCwrapType(strings.TrimSpace(typeAndName[:space]))
	arg.Name = strings.TrimSpace(typeAndName[space+1:])
	return arg, nil
}

// mapCwrapType maps the TH-flavored cwrap type names onto the schema types
// the rest of the pipeline speaks.
func mapCwrapType(cwrapType string) string {
	switch cwrapType {
	case "THTensor*", "THTensor", "Tensor":
		return "Tensor"
	case "THIndexTensor*", "THBoolTensor*":
		return "Tensor"
	case "THGenerator*":
		return "Generator"
	case "real", "accreal":
		return "Scalar"
	case "long":
		return "int"
	case "double":
		return "float"
	case "bool":
		return "bool"
	default:
		return cwrapType
	}
}
