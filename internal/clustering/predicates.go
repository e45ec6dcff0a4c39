package clustering

import "github.com/udupa-navya/cf-feedback-agent/internal/models"

const accountNouns = `\b(account|subscription|plan|billing|billed|invoice\w*|profile|payment\w*|charge[sd]?|refund\w*|membership|trial)\b`

// UserSpecificPredicate decides whether feedback describes one person's private
// account, billing or profile state rather than a systemic bug.
//
// Personal rules are checked first and win over systemic rules; the catch-all
// runs only when neither group fired.
type UserSpecificPredicate struct {
	Personal *RuleSet
	Systemic *RuleSet
	CatchAll *RuleSet
}

// DefaultUserSpecificPredicate returns the built-in rule battery.
func DefaultUserSpecificPredicate() *UserSpecificPredicate {
	return &UserSpecificPredicate{
		Personal: NewRuleSet(
			NewRule("possessive_account",
				`\bmy (account|subscription|plan|billing|invoice|profile|payment|card|order|refund|membership|trial|email address|username)\b`),
			NewRule("account_action",
				`\b(cancel|upgrade|downgrade|delete|close|reactivate) my (account|subscription|plan|membership)\b`),
			NewRule("double_charge", `\b(charged twice|double[- ]charged|refund me)\b`),
			NewRule("first_person_experience",
				`\bi('m|'ve| am| was| have| got| paid)\b`).
				WithRequires(accountNouns),
		),
		Systemic: NewRuleSet(
			NewRule("app_crash", `\bapp (crash\w*|keeps crashing|freez\w*|force[- ]?clos\w*)\b`),
			NewRule("many_users", `\b(many|multiple|all|other|several) (users|people|customers)\b`),
			NewRule("affecting_all", `\baffect\w* (all|everyone|many|every)\b`),
			NewRule("outage", `\b(outage|down for everyone|everyone is)\b`),
		),
		CatchAll: NewRuleSet(
			NewRule("first_person_account", `\b(my|i)\b`).
				WithRequires(`\b(subscription|account|billing|payment|data)\b`),
		),
	}
}

// Matches reports whether text is user-specific.
func (p *UserSpecificPredicate) Matches(text string) bool {
	if p.Personal != nil && p.Personal.Any(text) {
		return true
	}

	if p.Systemic != nil && p.Systemic.Any(text) {
		return false
	}

	if p.CatchAll != nil && p.CatchAll.Any(text) {
		return true
	}

	return false
}

// IsUserSpecificCluster reports whether c is a singleton whose representative text is user-specific.
// Such clusters never take part in matching.
func (p *UserSpecificPredicate) IsUserSpecificCluster(c *models.Cluster) bool {
	return c.Count == 1 && p.Matches(c.Representative.Text)
}

// DefaultPositiveRules is the lexical predicate separating praise from support requests
// among singleton clusters.
func DefaultPositiveRules() *RuleSet {
	return NewRuleSet(
		NewRule("positive",
			`\b(great|love[sd]?|loving|thanks|thank you|appreciated?|good work|excellent|improved significantly|awesome|amazing)\b`),
	)
}
