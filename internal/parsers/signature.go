// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"strings"

	"github.com/gomlx/tensorgen/internal/declarations"
	"github.com/pkg/errors"
)

// parseSignature parses a function schema like
//
//	add.out(Tensor self, Tensor other, *, Tensor(a!) out) -> Tensor(a!)
//
// into its name, overload name, arguments and returns. The `*` separator
// marks the remaining arguments keyword-only; a `(a!)` annotation marks an
// output buffer.
func parseSignature(sig string) (name, overload string, args []declarations.Argument, rets []declarations.Return, err error) {
	open := strings.Index(sig, "(")
	if open < 0 {
		err = errors.Errorf("signature %q has no argument list", sig)
		return
	}
	fullName := strings.TrimSpace(sig[:open])
	if dot := strings.Index(fullName, "."); dot >= 0 {
		name, overload = fullName[:dot], fullName[dot+1:]
	} else {
		name = fullName
	}

	rest := sig[open+1:]
	closing := matchingParen(rest)
	if closing < 0 {
		err = errors.Errorf("signature %q has an unterminated argument list", sig)
		return
	}
	argList := rest[:closing]
	tail := strings.TrimSpace(rest[closing+1:])

	kwargOnly := false
	for _, field := range splitTopLevel(argList) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if field == "*" {
			kwargOnly = true
			continue
		}
		var arg declarations.Argument
		arg, err = parseArgument(field)
		if err != nil {
			err = errors.WithMessagef(err, "in signature %q", sig)
			return
		}
		arg.KwargOnly = kwargOnly
		args = append(args, arg)
	}

	if tail == "" {
		return
	}
	if !strings.HasPrefix(tail, "->") {
		err = errors.Errorf("signature %q: expected `-> returns`, got %q", sig, tail)
		return
	}
	rets, err = parseReturns(strings.TrimSpace(tail[2:]))
	if err != nil {
		err = errors.WithMessagef(err, "in signature %q", sig)
	}
	return
}

// parseArgument parses `Type name`, `Type name=default` or
// `Type(a!) name`.
func parseArgument(field string) (declarations.Argument, error) {
	var arg declarations.Argument
	typeAndName := field
	if eq := strings.Index(field, "="); eq >= 0 {
		typeAndName = strings.TrimSpace(field[:eq])
		arg.Default = strings.TrimSpace(field[eq+1:])
		arg.HasDefault = true
	}
	space := strings.LastIndex(typeAndName, " ")
	if space < 0 {
		return arg, errors.Errorf("argument %q has no name", field)
	}
	arg.Type, arg.IsOutput = stripAnnotation(strings.TrimSpace(typeAndName[:space]))
	arg.Name = strings.TrimSpace(typeAndName[space+1:])
	return arg, nil
}

// parseReturns parses `Tensor`, `Tensor(a!)`, `()` or a tuple
// `(Tensor values, Tensor indices)` with optional names.
func parseReturns(text string) ([]declarations.Return, error) {
	if text == "()" {
		return nil, nil
	}
	if !strings.HasPrefix(text, "(") {
		retType, _ := stripAnnotation(text)
		return []declarations.Return{{Type: retType}}, nil
	}
	closing := matchingParen(text[1:])
	if closing < 0 {
		return nil, errors.Errorf("returns %q: unterminated tuple", text)
	}
	var rets []declarations.Return
	for _, field := range splitTopLevel(text[1 : 1+closing]) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		var ret declarations.Return
		if space := strings.LastIndex(field, " "); space >= 0 {
			ret.Type, _ = stripAnnotation(field[:space])
			ret.Name = field[space+1:]
		} else {
			ret.Type, _ = stripAnnotation(field)
		}
		rets = append(rets, ret)
	}
	return rets, nil
}

// stripAnnotation removes an alias annotation like `(a!)` from a type,
// reporting whether it marked a write (`!`).
func stripAnnotation(typeText string) (string, bool) {
	open := strings.Index(typeText, "(")
	if open < 0 {
		return typeText, false
	}
	closing := strings.Index(typeText[open:], ")")
	if closing < 0 {
		return typeText, false
	}
	annotation := typeText[open : open+closing+1]
	return typeText[:open] + typeText[open+closing+1:], strings.Contains(annotation, "!")
}

// splitTopLevel splits on commas not nested inside (), [] or <>.
func splitTopLevel(text string) []string {
	var fields []string
	depth := 0
	last := 0
	for i, r := range text {
		switch r {
		case '(', '[', '<':
			depth++
		case ')', ']', '>':
			depth--
		case ',':
			if depth == 0 {
				fields = append(fields, text[last:i])
				last = i + 1
			}
		}
	}
	fields = append(fields, text[last:])
	return fields
}

// matchingParen returns the index of the ')' closing the '(' that text
// starts right after, or -1.
func matchingParen(text string) int {
	depth := 1
	for i, r := range text {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
