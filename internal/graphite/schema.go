// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graphite

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Aggregate names a built-in reduction.
type Aggregate string

const (
	AggregateSum Aggregate = "sum"
	AggregateAvg Aggregate = "avg"
	AggregateMin Aggregate = "min"
	AggregateMax Aggregate = "max"
)

// AggregateFunc reduces the values collected for one metric in one second.
// It is never called with an empty slice.
type AggregateFunc func(values []float64) float64

// Rule maps metric names to an aggregation. Pattern is an exact name or an
// fnmatch glob: * and ? also match dots, [!...] negates a set, an unclosed [
// and a backslash are literal. Func, when set, overrides Aggregate.
type Rule struct {
	Pattern   string
	Aggregate Aggregate
	Func      AggregateFunc
}

// Schema is an ordered rule list. Exact matches win over globs; among globs
// the first match wins; unmatched names are averaged.
type Schema []Rule

// Validate rejects empty or uncompilable patterns and unknown aggregate names.
func (s Schema) Validate() error {
	_, err := s.compile()
	return err
}

// matcher is a Schema with its globs compiled.
type matcher struct {
	rules Schema
	globs []*regexp.Regexp
}

func (s Schema) compile() (matcher, error) {
	m := matcher{rules: slices.Clone(s), globs: make([]*regexp.Regexp, len(s))}
	for i, r := range s {
		if r.Pattern == "" {
			return matcher{}, fmt.Errorf("schema[%d]: empty pattern", i)
		}
		re, err := regexp.Compile(globToRegexp(r.Pattern))
		if err != nil {
			return matcher{}, fmt.Errorf("schema[%d]: pattern %q: %w", i, r.Pattern, err)
		}
		m.globs[i] = re
		if r.Func == nil {
			if _, ok := builtins[r.Aggregate]; !ok {
				return matcher{}, fmt.Errorf("schema[%d]: unknown aggregate %q", i, r.Aggregate)
			}
		}
	}
	return m, nil
}

func (m matcher) resolve(name string) AggregateFunc {
	if i := slices.IndexFunc(m.rules, func(r Rule) bool { return r.Pattern == name }); i >= 0 {
		return m.rules[i].fn()
	}
	for i, re := range m.globs {
		if re.MatchString(name) {
			return m.rules[i].fn()
		}
	}
	return builtins[AggregateAvg]
}

// globToRegexp translates an fnmatch pattern into an anchored expression.
func globToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString(`^(?s:`)
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*':
			b.WriteString(`.*`)
			for i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
			}
		case '?':
			b.WriteByte('.')
		case '[':
			end := classEnd(pattern, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(classToRegexp(pattern[i+1 : end]))
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	b.WriteString(`)$`)
	return b.String()
}

// classEnd returns the index of the ] closing the set opened at start, or -1.
// A ] right after [ or [! belongs to the set.
func classEnd(pattern string, start int) int {
	j := start + 1
	if j < len(pattern) && pattern[j] == '!' {
		j++
	}
	if j < len(pattern) && pattern[j] == ']' {
		j++
	}
	if k := strings.IndexByte(pattern[j:], ']'); k >= 0 {
		return j + k
	}
	return -1
}

func classToRegexp(set string) string {
	var b strings.Builder
	b.WriteByte('[')
	if strings.HasPrefix(set, "!") {
		b.WriteByte('^')
		set = set[1:]
	} else if strings.HasPrefix(set, "^") {
		b.WriteString(`\^`)
		set = set[1:]
	}
	for i := 0; i < len(set); i++ {
		switch c := set[i]; c {
		case '\\', '[', ']':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(']')
	return b.String()
}

func (r Rule) fn() AggregateFunc {
	if r.Func != nil {
		return r.Func
	}
	if f, ok := builtins[r.Aggregate]; ok {
		return f
	}
	return builtins[AggregateAvg]
}

var builtins = map[Aggregate]AggregateFunc{
	AggregateSum: sum,
	AggregateAvg: func(v []float64) float64 { return sum(v) / float64(len(v)) },
	AggregateMin: func(v []float64) float64 { return slices.Min(v) },
	AggregateMax: func(v []float64) float64 { return slices.Max(v) },
}

func sum(v []float64) float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	return total
}
