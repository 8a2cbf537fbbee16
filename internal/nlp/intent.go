package nlp

import "strings"

// Intent is the kind of tabular operation a question asks for.
type Intent string

const (
	IntentAggregation Intent = "aggregation"
	IntentFilter      Intent = "filter"
	IntentCount       Intent = "count"
	IntentSelectAll   Intent = "select_all"
	IntentGeneral     Intent = "general"
)

type intentRule struct {
	intent   Intent
	triggers []string
}

// Rules are checked in order and the first rule with a matching trigger
// wins. Aggregation is checked before Filter, so "total sales where region
// is set" is an aggregation. "count" also appears in the aggregation
// triggers, which means the count rule only fires on "how many".
var intentRules = []intentRule{
	{IntentAggregation, []string{"sum", "total", "average", "avg", "count", "max", "min"}},
	{IntentFilter, []string{"where", "filter", "with", "having"}},
	{IntentCount, []string{"count", "how many"}},
	{IntentSelectAll, []string{"show all", "all data", "everything", "list all"}},
}

// ClassifyResult contains the intent and the trigger that selected it
type ClassifyResult struct {
	Intent  Intent `json:"intent"`
	Trigger string `json:"trigger,omitempty"`
}

// Classifier maps question text to an Intent by substring triggers.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the intent for text.
func (c *Classifier) Classify(text string) Intent {
	return c.ClassifyDetailed(text).Intent
}

// ClassifyDetailed analyses the text and reports which trigger matched
func (c *Classifier) ClassifyDetailed(text string) ClassifyResult {
	lower := strings.ToLower(text)
	for _, rule := range intentRules {
		for _, trig := range rule.triggers {
			if strings.Contains(lower, trig) {
				return ClassifyResult{Intent: rule.intent, Trigger: trig}
			}
		}
	}
	return ClassifyResult{Intent: IntentGeneral}
}
