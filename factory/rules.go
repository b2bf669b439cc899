/*
Package factory provides JSON to Go rule-set conversion.

PURPOSE:
  Converts JSON component rule definitions into a settlement.Rules value.
  Payroll can cap additional components (e.g. "Notice Pay" at 60 days)
  without a code change.

JSON SCHEMA:
  {
    "components": [
      {"name": "Notice Pay", "policy": "capped", "max_days": 60},
      {"name": "Leave Encashment", "policy": "default"}
    ]
  }

POLICIES:
  default:  amount = days x rate (nothing to register)
  capped:   amount = min(days, max_days) x rate

RESERVED:
  "Worked Day" is always capped at 30 days. A definition naming it is
  rejected rather than silently ignored.

USAGE:
  rules, err := factory.NewRuleFactory().ParseRuleSet(jsonString)
  applicator := &settlement.Applicator{Rules: rules, Schema: settlement.FullSchema()}

SEE ALSO:
  - settlement/rules.go: Rules type
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleSetJSON is the JSON representation of a rule set.
type RuleSetJSON struct {
	Components []ComponentJSON `json:"components"`
}

// ComponentJSON describes one component's policy.
type ComponentJSON struct {
	Name    string   `json:"name"`
	Policy  string   `json:"policy"` // default, capped
	MaxDays *float64 `json:"max_days,omitempty"`
}

const (
	PolicyDefault = "default"
	PolicyCapped  = "capped"
)

var (
	// ErrInvalidRule is returned for malformed component definitions.
	ErrInvalidRule = errors.New("invalid component rule")

	// ErrReservedComponent is returned when a definition targets Worked Day.
	ErrReservedComponent = errors.New("component rule is reserved")
)

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rule sets to settlement.Rules.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRuleSet parses a JSON rule set on top of the default rules.
func (f *RuleFactory) ParseRuleSet(jsonStr string) (*settlement.Rules, error) {
	var def RuleSetJSON
	if err := json.Unmarshal([]byte(jsonStr), &def); err != nil {
		return nil, fmt.Errorf("failed to parse rule set JSON: %w", err)
	}
	return f.Build(def)
}

// LoadRuleSet reads and parses a rule-set file.
func (f *RuleFactory) LoadRuleSet(path string) (*settlement.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}
	return f.ParseRuleSet(string(data))
}

// Build validates def and returns the resulting rules.
func (f *RuleFactory) Build(def RuleSetJSON) (*settlement.Rules, error) {
	rules := settlement.NewRules()
	seen := make(map[string]bool, len(def.Components))

	for i, c := range def.Components {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: component %d has no name", ErrInvalidRule, i)
		}
		if name == settlement.WorkedDayComponent {
			return nil, fmt.Errorf("%w: %s", ErrReservedComponent, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s defined twice", ErrInvalidRule, name)
		}
		seen[name] = true

		switch policy := strings.TrimSpace(c.Policy); policy {
		case "", PolicyDefault:
			if c.MaxDays != nil {
				return nil, fmt.Errorf("%w: %s: max_days needs policy %q", ErrInvalidRule, name, PolicyCapped)
			}
		case PolicyCapped:
			if c.MaxDays == nil || *c.MaxDays < 0 {
				return nil, fmt.Errorf("%w: %s: capped policy needs max_days >= 0", ErrInvalidRule, name)
			}
			rules = rules.WithCap(name, decimal.NewFromFloat(*c.MaxDays))
		default:
			return nil, fmt.Errorf("%w: %s: unknown policy %q", ErrInvalidRule, name, policy)
		}
	}
	return rules, nil
}
