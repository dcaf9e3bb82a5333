package auth

import (
	"fmt"

	"github.com/gobwas/glob"
)

// PathRule marks a route pattern whose listed methods do not require
// authorization. An empty method set is a valid rule: it makes a more
// specific pattern override an earlier public one.
type PathRule struct {
	Pattern string
	Methods []HTTPMethod
}

type compiledPathRule struct {
	pattern string
	matcher glob.Glob
	methods []HTTPMethod
}

// PathRuleTable is the compiled list of public-route rules. It is
// built once at startup and read-only afterwards, so it is safe for
// unbounded concurrent use.
type PathRuleTable struct {
	rules []compiledPathRule
}

// CompilePathRules compiles every configured pattern. A malformed
// pattern or unknown method is a configuration error; callers treat it
// as startup-fatal.
func CompilePathRules(rules []PathRule) (*PathRuleTable, error) {
	table := &PathRuleTable{rules: make([]compiledPathRule, 0, len(rules))}
	for _, rule := range rules {
		matcher, err := glob.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("path rule %q: %w", rule.Pattern, err)
		}
		for _, m := range rule.Methods {
			if !knownMethods[m] {
				return nil, fmt.Errorf("path rule %q: unknown method %q", rule.Pattern, m)
			}
		}
		table.rules = append(table.rules, compiledPathRule{
			pattern: rule.Pattern,
			matcher: matcher,
			methods: append([]HTTPMethod(nil), rule.Methods...),
		})
	}
	return table, nil
}

// Public reports whether the request may skip authorization entirely.
// Rules are evaluated in declaration order and the LAST matching rule
// wins outright - replacement, not union. This must stay an explicit
// last-match scan; an early-exit or a union of matches changes the
// override semantics.
func (t *PathRuleTable) Public(method HTTPMethod, path string) bool {
	var last *compiledPathRule
	for i := range t.rules {
		if t.rules[i].matcher.Match(path) {
			last = &t.rules[i]
		}
	}
	if last == nil {
		return false
	}
	return methodSetAllows(last.methods, method)
}

// Len returns the number of compiled rules.
func (t *PathRuleTable) Len() int {
	return len(t.rules)
}
