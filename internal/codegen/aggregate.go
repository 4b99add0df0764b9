// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package codegen

import (
	"slices"

	"github.com/gomlx/tensorgen/pkg/support/sets"
)

// Aggregator collects operator registrations across every declaration and
// every backend into the three output groupings: the flat (or per-operator)
// kernel registration lists, and the global schema-only list.
type Aggregator struct {
	// Whitelist restricts which operators receive kernel registrations.
	// nil means no filtering. Keys are namespace::op without overload.
	Whitelist sets.Set[string]

	// PerOp groups kernel registrations by operator name instead of the
	// flat per-type lists; non-nil only in per-operator-file mode.
	// Encounter order is preserved within each key.
	PerOp map[string][]string

	// schema accumulates every operator's schema-only registration,
	// independent of the whitelist, when schema-only generation is on.
	schema    []string
	hasSchema bool
}

// NewAggregator configures aggregation for one run.
func NewAggregator(whitelist sets.Set[string], perOp, forceSchema bool) *Aggregator {
	agg := &Aggregator{Whitelist: whitelist, hasSchema: forceSchema}
	if perOp {
		agg.PerOp = make(map[string][]string)
	}
	return agg
}

// Add routes each registration: schema-only code is always collected (the
// schema-completeness guarantee — even operators excluded by the whitelist
// keep a resolvable schema); kernel registrations are whitelist-filtered and
// then appended to the per-operator grouping or to perType, the caller's
// flat per-backend list.
func (agg *Aggregator) Add(perType *[]string, regs []OperatorRegistration) {
	for _, reg := range regs {
		if agg.hasSchema {
			agg.schema = append(agg.schema, reg.SchemaRegistrationCode)
		}
		if agg.Whitelist != nil && !agg.Whitelist.Has(reg.OperatorName) {
			continue
		}
		if agg.PerOp != nil {
			agg.PerOp[reg.OperatorName] = append(agg.PerOp[reg.OperatorName], reg.RegistrationCode)
		} else {
			*perType = append(*perType, reg.RegistrationCode)
		}
	}
}

// SchemaRegistrations returns the schema-only table, sorted and
// deduplicated: identical schema text arriving from multiple backends
// collapses to one entry, and the lexicographic order makes the emitted file
// reproducible run-to-run.
func (agg *Aggregator) SchemaRegistrations() []string {
	if !agg.hasSchema {
		return nil
	}
	sorted := slices.Clone(agg.schema)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}
