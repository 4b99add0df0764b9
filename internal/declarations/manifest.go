// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package declarations

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ManifestYAML serializes the normalized declarations as the
// Declarations.yaml manifest consumed by downstream tooling.
//
// The encoding is stable and alias-free: fresh struct values per record (no
// shared nodes, so the encoder never emits anchors), fields in declaration
// order, nil optional fields omitted rather than serialized as null, and
// every scalar on a single line however long (some manifest consumers read
// it with line-oriented tools that do not understand YAML's optional line
// breaks). Byte stability across runs is part of the output contract.
func ManifestYAML(decls []*Declaration) (string, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(decls); err != nil {
		return "", errors.Wrap(err, "failed to serialize declarations manifest")
	}
	if err := enc.Close(); err != nil {
		return "", errors.Wrap(err, "failed to serialize declarations manifest")
	}
	return unfoldScalars(b.String()), nil
}

// manifestEntryRe matches lines that begin a manifest entry: a sequence
// item or a `key:` of the snake_case keys the Declaration yaml tags define.
// Any other non-empty line is the continuation of a folded scalar.
var manifestEntryRe = regexp.MustCompile(`^ *(- |[a-z_]+:( |$))`)

// unfoldScalars rejoins scalars the YAML emitter folded across lines. The
// emitter hardcodes an 80-column width and breaks long plain scalars at a
// space; schema strings routinely exceed that. A plain-scalar fold stands
// for a single space, so joining with one space restores the original text.
func unfoldScalars(doc string) string {
	lines := strings.Split(doc, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(out) > 0 && line != "" && !manifestEntryRe.MatchString(line) {
			out[len(out)-1] += " " + strings.TrimLeft(line, " ")
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
