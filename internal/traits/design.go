// Package traits expands categorical sample metadata into a numeric design
// matrix. For every factor the first level in the caller-supplied ordering
// is the reference level and is omitted by construction: downstream callers
// must not read the absence of <factor><first_level> as missing data.
package traits

import (
	"fmt"
	"strings"

	"hubseek/internal/matrix"
)

// Factor names a categorical metadata column and its deterministic level
// ordering. Levels[0] is the reference level. An empty Levels derives the
// ordering from first appearance in the working sample order.
type Factor struct {
	Name   string   `yaml:"name"`
	Levels []string `yaml:"levels"`
}

// Design is the samples x encoded-trait-columns indicator matrix. Row order
// is identical to the working sample order.
type Design struct {
	Samples []string
	Columns []string
	Data    [][]float64 // row per sample
}

// Column returns the values of one encoded trait column across samples.
func (d *Design) Column(name string) ([]float64, bool) {
	for j, c := range d.Columns {
		if c == name {
			col := make([]float64, len(d.Samples))
			for i := range d.Data {
				col[i] = d.Data[i][j]
			}
			return col, true
		}
	}
	return nil, false
}

// SanitizeColumn makes a factor+level concatenation a safe identifier:
// anything outside [A-Za-z0-9_] becomes an underscore.
func SanitizeColumn(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Build encodes the given factors over metadata rows already aligned to the
// working sample order. Each non-reference level becomes one indicator
// column named SanitizeColumn(factor + level).
func Build(md *matrix.Metadata, factors []Factor) (*Design, error) {
	if len(factors) == 0 {
		return nil, &matrix.InputError{Reason: "no trait factors to encode"}
	}
	type column struct {
		name   string
		factor string
		level  string
	}
	var cols []column
	levelSets := make(map[string]map[string]bool, len(factors))

	for _, f := range factors {
		if !hasColumn(md.Columns, f.Name) {
			return nil, &matrix.InputError{Reason: "unknown trait column", Identifiers: []string{f.Name}}
		}
		levels := f.Levels
		if len(levels) == 0 {
			levels = observedLevels(md, f.Name)
		}
		if len(levels) < 2 {
			return nil, &matrix.InputError{
				Reason:      fmt.Sprintf("factor %q needs at least two levels, got %d", f.Name, len(levels)),
				Identifiers: levels,
			}
		}
		known := make(map[string]bool, len(levels))
		for _, l := range levels {
			known[l] = true
		}
		levelSets[f.Name] = known
		// Reference level levels[0] is intentionally not emitted.
		for _, l := range levels[1:] {
			cols = append(cols, column{name: SanitizeColumn(f.Name + l), factor: f.Name, level: l})
		}
	}

	// Values outside the declared level sets are enumerated, not skipped.
	var unknown []string
	for _, s := range md.Samples {
		for _, f := range factors {
			v := md.Value(s, f.Name)
			if !levelSets[f.Name][v] {
				unknown = append(unknown, fmt.Sprintf("%s[%s]=%s", s, f.Name, v))
			}
		}
	}
	if len(unknown) > 0 {
		return nil, &matrix.InputError{Reason: "metadata values outside declared factor levels", Identifiers: unknown}
	}

	names := make([]string, len(cols))
	for j, c := range cols {
		names[j] = c.name
	}
	data := make([][]float64, len(md.Samples))
	for i, s := range md.Samples {
		row := make([]float64, len(cols))
		for j, c := range cols {
			if md.Value(s, c.factor) == c.level {
				row[j] = 1
			}
		}
		data[i] = row
	}
	return &Design{Samples: append([]string(nil), md.Samples...), Columns: names, Data: data}, nil
}

func hasColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

// observedLevels returns factor levels in order of first appearance across
// the working sample order.
func observedLevels(md *matrix.Metadata, col string) []string {
	seen := make(map[string]bool)
	var levels []string
	for _, s := range md.Samples {
		v := md.Value(s, col)
		if !seen[v] {
			seen[v] = true
			levels = append(levels, v)
		}
	}
	return levels
}
