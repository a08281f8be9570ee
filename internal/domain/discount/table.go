package discount

import (
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/yaml"
)

// Table is the immutable set of discount rules keyed by normalized code.
// It is built once at startup; lookups are safe for concurrent use.
type Table struct {
	rules map[Code]Rule
}

// NewTable builds a Table from the given rules. Rules that fail validation
// are skipped and reported in the returned slice so the caller can log them;
// a partially invalid rule set never prevents startup.
func NewTable(rules []Rule) (*Table, []error) {
	t := &Table{rules: make(map[Code]Rule, len(rules))}
	var skipped []error
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			skipped = append(skipped, err)
			continue
		}
		t.rules[r.Code] = r
	}
	return t, skipped
}

// Lookup returns the rule for a normalized code.
func (t *Table) Lookup(code Code) (Rule, bool) {
	r, ok := t.rules[code]
	return r, ok
}

// Len returns the number of loaded rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// ruleFile is the on-disk YAML document describing configured discounts.
type ruleFile struct {
	Discounts []ruleEntry `yaml:"discounts"`
}

type ruleEntry struct {
	Code           string `yaml:"code"`
	Percentage     int    `yaml:"percentage"`
	Duration       string `yaml:"duration"`
	DurationMonths int    `yaml:"duration_months"`
	Active         bool   `yaml:"active"`
	ExpiresAt      string `yaml:"expires_at"` // RFC 3339, optional
	MaxUses        int    `yaml:"max_uses"`
	Description    string `yaml:"description"`
}

// ParseRules decodes a YAML rules document into a Table. Entry codes are
// normalized on load so lookups against normalized user input always match.
// Malformed entries are skipped and reported alongside the table.
func ParseRules(data []byte) (*Table, []error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []error{errors.Wrap(err, "decode rules")}
	}

	rules := make([]Rule, 0, len(doc.Discounts))
	var skipped []error
	for _, e := range doc.Discounts {
		code, err := Normalize(e.Code)
		if err != nil {
			skipped = append(skipped, errors.Wrapf(err, "rule %q", e.Code))
			continue
		}

		var expiresAt *time.Time
		if e.ExpiresAt != "" {
			ts, err := time.Parse(time.RFC3339, e.ExpiresAt)
			if err != nil {
				skipped = append(skipped, errors.Wrapf(err, "rule %q: expires_at", e.Code))
				continue
			}
			expiresAt = &ts
		}

		rules = append(rules, Rule{
			Code:           code,
			Percentage:     e.Percentage,
			Duration:       Duration(e.Duration),
			DurationMonths: e.DurationMonths,
			Active:         e.Active,
			ExpiresAt:      expiresAt,
			MaxUses:        e.MaxUses,
			Description:    e.Description,
		})
	}

	table, invalid := NewTable(rules)
	return table, append(skipped, invalid...)
}

// LoadRules reads and parses the rules file at path.
func LoadRules(path string) (*Table, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{errors.Wrapf(err, "read rules file %s", path)}
	}
	return ParseRules(data)
}
