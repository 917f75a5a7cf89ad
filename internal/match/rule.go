package match

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"recast/internal/errors"
	"recast/internal/lang"
)

// Rule is a declarative rewrite rule loaded from YAML. Pattern uses the same
// metavariable syntax as ad-hoc patterns; Fix is a replacement template the
// planner substitutes captures into.
type Rule struct {
	ID       string `yaml:"id"`
	Language string `yaml:"language"`
	Pattern  string `yaml:"pattern"`
	Fix      string `yaml:"fix"`
	Message  string `yaml:"message,omitempty"`
}

// ParseRules parses one or more YAML documents into rules. Multiple rules
// are separated by "---" document markers.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	for {
		var r Rule
		err := dec.Decode(&r)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.New(errors.InputError, "malformed rule file", err)
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return nil, errors.New(errors.InputError, "rule file contains no rules", nil)
	}
	return rules, nil
}

// Validate checks the rule's required fields and language tag.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return errors.New(errors.InputError, "rule is missing an id", nil)
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return errors.Newf(errors.InputError, "rule %s has no pattern", r.ID)
	}
	if strings.TrimSpace(r.Fix) == "" {
		return errors.Newf(errors.InputError, "rule %s has no fix", r.ID)
	}
	if _, ok := lang.Parse(r.Language); !ok {
		return errors.Newf(errors.InputError, "rule %s: unknown language %q", r.ID, r.Language)
	}
	return nil
}

// Lang returns the parsed language tag. Validate must have succeeded.
func (r *Rule) Lang() lang.Language {
	l, ok := lang.Parse(r.Language)
	if !ok {
		panic(fmt.Sprintf("rule %s not validated", r.ID))
	}
	return l
}
