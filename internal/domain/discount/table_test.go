package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	doc := []byte(`
discounts:
  - code: prospectinggoat12
    percentage: 70
    duration: once
    active: true
    description: "70% off first month"
  - code: TEAMPLAN30
    percentage: 30
    duration: repeating
    duration_months: 6
    active: true
    max_uses: 100
  - code: EARLYBIRD
    percentage: 20
    duration: forever
    active: true
    expires_at: "2025-12-31T23:59:59Z"
`)

	table, skipped := ParseRules(doc)
	require.NotNil(t, table)
	require.Empty(t, skipped)
	assert.Equal(t, 3, table.Len())

	rule, ok := table.Lookup("PROSPECTINGGOAT12")
	require.True(t, ok, "codes are normalized on load")
	assert.Equal(t, 70, rule.Percentage)
	assert.Equal(t, DurationOnce, rule.Duration)

	rule, ok = table.Lookup("TEAMPLAN30")
	require.True(t, ok)
	assert.Equal(t, 6, rule.DurationMonths)
	assert.Equal(t, 100, rule.MaxUses)

	rule, ok = table.Lookup("EARLYBIRD")
	require.True(t, ok)
	require.NotNil(t, rule.ExpiresAt)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), rule.ExpiresAt.UTC())
}

func TestParseRulesSkipsInvalidEntries(t *testing.T) {
	doc := []byte(`
discounts:
  - code: GOODONE10
    percentage: 10
    duration: once
    active: true
  - code: "!!"
    percentage: 10
    duration: once
    active: true
  - code: OVERLIMIT
    percentage: 150
    duration: once
    active: true
  - code: BADCLOCK
    percentage: 10
    duration: once
    active: true
    expires_at: "not-a-timestamp"
  - code: REPEATNOMONTHS
    percentage: 10
    duration: repeating
    active: true
`)

	table, skipped := ParseRules(doc)
	require.NotNil(t, table)
	assert.Len(t, skipped, 4)
	assert.Equal(t, 1, table.Len())

	_, ok := table.Lookup("GOODONE10")
	assert.True(t, ok)
}

func TestParseRulesMalformedDocument(t *testing.T) {
	table, skipped := ParseRules([]byte("discounts: [broken"))
	assert.Nil(t, table)
	require.Len(t, skipped, 1)
}

func TestNewTableKeepsLastDuplicate(t *testing.T) {
	table, skipped := NewTable([]Rule{
		{Code: "TWICE10", Percentage: 10, Duration: DurationOnce, Active: true},
		{Code: "TWICE10", Percentage: 20, Duration: DurationOnce, Active: true},
	})
	require.Empty(t, skipped)
	assert.Equal(t, 1, table.Len())

	rule, ok := table.Lookup("TWICE10")
	require.True(t, ok)
	assert.Equal(t, 20, rule.Percentage)
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{name: "valid once", rule: Rule{Code: "OK1", Percentage: 10, Duration: DurationOnce}},
		{name: "valid forever", rule: Rule{Code: "OK2", Percentage: 100, Duration: DurationForever}},
		{name: "valid repeating", rule: Rule{Code: "OK3", Percentage: 10, Duration: DurationRepeating, DurationMonths: 3}},
		{name: "zero percentage", rule: Rule{Code: "BAD", Percentage: 0, Duration: DurationOnce}, wantErr: true},
		{name: "over 100", rule: Rule{Code: "BAD", Percentage: 101, Duration: DurationOnce}, wantErr: true},
		{name: "unknown duration", rule: Rule{Code: "BAD", Percentage: 10, Duration: "sometimes"}, wantErr: true},
		{name: "repeating without months", rule: Rule{Code: "BAD", Percentage: 10, Duration: DurationRepeating}, wantErr: true},
		{name: "negative max uses", rule: Rule{Code: "BAD", Percentage: 10, Duration: DurationOnce, MaxUses: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
