package domain

// FlagRule is an operator-defined red-flag rule. The expression is a CEL
// boolean over the flattened signal view; when it evaluates true the
// rule's message is appended to the assessment's red flags.
type FlagRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression, e.g. `fraud_keyword_count > 0 && registry_found == false`
	Expression string `json:"expression"`

	// Message is the red flag text attached when the rule fires.
	Message string `json:"message"`

	// Critical rules force the risk level to high.
	Critical bool `json:"critical"`

	// Category the resulting flag is attributed to.
	Category Category `json:"category"`

	// Whether the rule is active.
	Enabled bool `json:"enabled"`
}
