// Package validate checks generated dashboards and rules for PromQL syntax
// errors and references to metrics the service does not export.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/prometheus/promql/parser"

	"github.com/donaldgifford/listing-notifier/tools/dashgen/rules"
)

// Result collects hard errors and soft warnings from a validation pass.
type Result struct {
	Errors   []error
	Warnings []string
}

// Ok reports whether no errors were found.
func (r Result) Ok() bool { return len(r.Errors) == 0 }

// Expr parses a single PromQL expression and checks every selected metric
// name against known. Selectors without a metric name produce a warning.
func Expr(where, expr string, known map[string]bool) Result {
	var r Result

	node, err := parser.ParseExpr(expr)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Errorf("%s: parsing %q: %w", where, expr, err))
		return r
	}

	parser.Inspect(node, func(n parser.Node, _ []parser.Node) error {
		vs, ok := n.(*parser.VectorSelector)
		if !ok {
			return nil
		}
		switch {
		case vs.Name == "":
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: selector without metric name in %q", where, expr))
		case !known[vs.Name]:
			r.Errors = append(r.Errors, fmt.Errorf("%s: unknown metric %q", where, vs.Name))
		}
		return nil
	})
	return r
}

// Dashboard validates every query target in a built dashboard. The
// dashboard is walked through its JSON form so nested rows are covered.
func Dashboard(dash any, known map[string]bool) Result {
	var r Result

	data, err := json.Marshal(dash)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Errorf("encoding dashboard: %w", err))
		return r
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		r.Errors = append(r.Errors, fmt.Errorf("decoding dashboard: %w", err))
		return r
	}

	walk(doc, "dashboard", func(where, expr string) {
		r.merge(Expr(where, expr, known))
	})
	return r
}

// Rules validates the expressions of every rule in cr. Recording rule
// names are not required to be known; alert and recording expressions are.
func Rules(cr rules.PrometheusRule, known map[string]bool) Result {
	var r Result
	for _, g := range cr.Spec.Groups {
		for _, rule := range g.Rules {
			r.merge(Expr(g.Name+"/"+rule.Name(), rule.Expr, known))
		}
	}
	return r
}

func (r *Result) merge(o Result) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// walk visits every "expr" string in v, naming it by the nearest panel title.
func walk(v any, where string, visit func(where, expr string)) {
	switch t := v.(type) {
	case map[string]any:
		if title, ok := t["title"].(string); ok && title != "" {
			where = title
		}
		if expr, ok := t["expr"].(string); ok && expr != "" {
			visit(where, expr)
		}
		for k, child := range t {
			if k == "expr" {
				continue
			}
			walk(child, where, visit)
		}
	case []any:
		for _, child := range t {
			walk(child, where, visit)
		}
	}
}
