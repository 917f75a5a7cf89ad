package rewrite

import (
	"context"

	"recast/internal/match"
)

// RuleResult is the outcome of one rule in a rule-file run.
type RuleResult struct {
	RuleID  string `json:"ruleId"`
	Message string `json:"message,omitempty"`
	Result  `json:"result"`
}

// RunRules executes each rule in order, every rule as its own batch and
// session. A rule with zero matches contributes a result with no
// session, and later rules still run.
func (r *Rewriter) RunRules(ctx context.Context, rules []match.Rule, base Request) ([]RuleResult, error) {
	out := make([]RuleResult, 0, len(rules))
	for _, rule := range rules {
		req := base
		req.Language = rule.Lang()
		req.Pattern = rule.Pattern
		req.Template = rule.Fix
		req.Label = labelOr(base.Label, "rule "+rule.ID)

		res, err := r.Run(ctx, req)
		if err != nil {
			return out, err
		}
		out = append(out, RuleResult{RuleID: rule.ID, Message: rule.Message, Result: *res})
	}
	return out, nil
}
