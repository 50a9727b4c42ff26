package optimization

import "fmt"

// Match evaluates a rule set against a request context and returns the
// target model of the first fully-matching condition group.
//
// Disabled rules are dropped first. The remaining rules are grouped by
// target model; groups are evaluated in the order each target model was
// first encountered in the input sequence, and every rule in a group must
// match (AND semantics, short-circuit on the first failure). The first
// group whose every rule matches wins; callers control precedence by
// controlling the order rules are supplied in.
//
// matched is false when no group fully matches, including the empty and
// all-disabled rule sets. That is an expected outcome, not an error. An
// unknown rule type or a conditions payload that does not fit its rule
// type aborts the whole evaluation: skipping a broken rule could route
// traffic incorrectly, so structural defects propagate to the caller.
//
// Match performs no I/O and never mutates its inputs; it is safe to call
// concurrently.
func Match(rules []Rule, reqCtx RequestContext) (target string, matched bool, err error) {
	groups := make(map[string][]Rule)
	var order []string

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if _, seen := groups[rule.TargetModel]; !seen {
			order = append(order, rule.TargetModel)
		}
		groups[rule.TargetModel] = append(groups[rule.TargetModel], rule)
	}

	for _, model := range order {
		ok, err := evaluateGroup(groups[model], reqCtx)
		if err != nil {
			return "", false, err
		}
		if ok {
			return model, true, nil
		}
	}
	return "", false, nil
}

// evaluateGroup checks whether every rule in a condition group matches
func evaluateGroup(rules []Rule, reqCtx RequestContext) (bool, error) {
	for i := range rules {
		ok, err := evaluateRule(&rules[i], reqCtx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// evaluateRule checks a single rule's condition against the context
func evaluateRule(rule *Rule, reqCtx RequestContext) (bool, error) {
	switch rule.RuleType {
	case RuleTypeContentLength:
		cond, ok := rule.Conditions.(ContentLengthConditions)
		if !ok {
			return false, mismatchError(rule)
		}
		return reqCtx.TokenCount <= cond.MaxLength, nil

	case RuleTypeToolPresence:
		cond, ok := rule.Conditions.(ToolPresenceConditions)
		if !ok {
			return false, mismatchError(rule)
		}
		return reqCtx.HasTools == cond.HasTools, nil

	default:
		return false, fmt.Errorf("rule %s: %w: %q", rule.ID, ErrUnknownRuleType, rule.RuleType)
	}
}

func mismatchError(rule *Rule) error {
	reason := "conditions missing"
	if rule.Conditions != nil {
		reason = fmt.Sprintf("conditions payload is for rule type %q", rule.Conditions.RuleType())
	}
	return &MalformedConditionsError{RuleID: rule.ID, RuleType: rule.RuleType, Reason: reason}
}
