// Package rules provides a client-side Sigma rule filter for raw events.
// Events matching at least one loaded rule enter the stream; everything
// else is skipped before indexing, so filtered events never consume an
// index or a pending slot.
package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"labelstream/pkg/models"
)

// LoadStats tracks the number of loaded and skipped rule files.
type LoadStats struct {
	TotalFiles     int
	Loaded         int
	SkippedInvalid int
}

type compiledRule struct {
	rule sigma.Rule
	eval *sigmaevaluator.RuleEvaluator
}

// Filter evaluates Sigma rules against individual feature sets.
type Filter struct {
	rules []compiledRule
	ctx   context.Context
}

// NewFilter loads Sigma rules from a file or directory and compiles
// evaluators. Files that fail to parse are skipped and counted in stats.
func NewFilter(path string) (*Filter, LoadStats, error) {
	var stats LoadStats

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	files := make([]string, 0, 64)
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() {
				return nil
			}
			if isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseRuleFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		compiled = append(compiled, compiledRule{
			rule: rule,
			eval: sigmaevaluator.ForRule(rule),
		})
		stats.Loaded++
	}

	return &Filter{rules: compiled, ctx: context.Background()}, stats, nil
}

// Match reports whether at least one loaded rule matches the event. A
// filter with no rules matches nothing.
func (f *Filter) Match(x models.Features) bool {
	if f == nil || len(f.rules) == 0 {
		return false
	}
	event := map[string]interface{}(x)
	for _, r := range f.rules {
		res, err := r.eval.Matches(f.ctx, event)
		if err != nil {
			continue
		}
		if res.Match {
			return true
		}
	}
	return false
}

// Len returns the number of compiled rules.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rules)
}

func parseRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}
