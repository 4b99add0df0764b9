// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package codetemplate implements the placeholder-substitution dialect the
// generator's source templates are written in.
//
// A template is plain text with `$name` or `${name}` placeholders, filled
// from an Env of strings and string lists. A list placeholder that sits
// alone on a line (only indentation before it) expands to one element per
// line, each carrying the same indentation; anywhere else a list joins with
// ", ". `$$` is a literal dollar sign.
package codetemplate

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Env is the flat namespace of values a template is rendered against.
// Values must be string or []string.
type Env map[string]any

// Clone returns a shallow copy of the environment. Useful when a caller
// wants to add render-local keys without mutating a shared Env.
func (env Env) Clone() Env {
	clone := make(Env, len(env)+2)
	for k, v := range env {
		clone[k] = v
	}
	return clone
}

// Template is a named, parsed substitution template.
type Template struct {
	// Name identifies the template in error messages and in the
	// "generated by" comment of rendered files.
	Name string

	text string
}

// The optional leading group captures a placeholder that starts its own
// line, which switches list values to indented per-line expansion.
var placeholderRe = regexp.MustCompile(`(?m)(^[ \t]*)?\$(?:(\$)|\{(\w+)\}|(\w+))`)

// New returns a Template over the given text.
func New(name, text string) *Template {
	return &Template{Name: name, text: text}
}

// Substitute renders the template against env. A placeholder naming a key
// absent from env is an error: templates and the code that fills them are
// maintained together, so a missing key means they drifted apart.
func (t *Template) Substitute(env Env) (string, error) {
	var b strings.Builder
	b.Grow(len(t.text) * 2)
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(t.text, -1) {
		b.WriteString(t.text[last:m[0]])
		last = m[1]
		indent := ""
		ownLine := m[2] >= 0
		if ownLine {
			indent = t.text[m[2]:m[3]]
		}
		if m[4] >= 0 { // $$
			b.WriteString(indent)
			b.WriteString("$")
			continue
		}
		var key string
		if m[6] >= 0 {
			key = t.text[m[6]:m[7]]
		} else {
			key = t.text[m[8]:m[9]]
		}
		value, found := env[key]
		if !found {
			return "", errors.Errorf("template %s: no value for placeholder $%s", t.Name, key)
		}
		switch v := value.(type) {
		case string:
			b.WriteString(indent)
			b.WriteString(v)
		case []string:
			if ownLine {
				for i, element := range v {
					if i > 0 {
						b.WriteString("\n")
					}
					// Multi-line elements keep the indent on every line.
					for j, line := range strings.Split(element, "\n") {
						if j > 0 {
							b.WriteString("\n")
						}
						if line != "" {
							b.WriteString(indent)
						}
						b.WriteString(line)
					}
				}
			} else {
				b.WriteString(strings.Join(v, ", "))
			}
		default:
			return "", errors.Errorf("template %s: placeholder $%s has unsupported type %T", t.Name, key, value)
		}
	}
	b.WriteString(t.text[last:])
	return b.String(), nil
}
