package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{
		"warranty_uniqueness",
		"reminder_cadence",
		"delivery_outage",
		"legacy_dedupe",
		"claims_dashboard",
	} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, EventInvocation, result.Trace[0].Type)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, EventCompletion, result.Trace[1].Type)
	assert.Equal(t, CaseOK, result.Trace[1].Case)
	assert.Equal(t, float64(1), result.Trace[1].Result["id"])
}

func TestRun_ExpectMismatchIsReported(t *testing.T) {
	result, err := Run(mustParse(t, `
name: mismatch
description: "Expectations that do not hold"
setup:
  - action: user.register
    args: { full_name: Ann, email: ann@example.com, password: secret1 }
flow:
  - invoke: warranty.add
    as: ann@example.com
    args: { product_name: Fridge, purchase_date: "2024-01-31", period: 1, unit: months }
    expect:
      case: OK
      result: { expiry_date: "2024-03-01" }
  - invoke: warranty.add
    as: ann@example.com
    args: { product_name: Kettle, purchase_date: "2024-01-01", period: 0 }
    expect:
      case: OK
assertions:
  - type: trace_count
    action: warranty.add
    count: 2
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expiry_date = 2024-02-29, want 2024-03-01")
	assert.Contains(t, result.Errors[1], "expected case OK, got VALIDATION")
}

func TestRun_UnknownAccountIsUnauthorized(t *testing.T) {
	result, err := Run(mustParse(t, `
name: stranger
description: "Steps run as an account that never registered"
flow:
  - invoke: warranty.list
    as: eve@example.com
    args: {}
    expect:
      case: UNAUTHORIZED
  - invoke: report.dashboard
    args: {}
    expect:
      case: UNAUTHORIZED
assertions:
  - type: trace_count
    action: warranty.list
    count: 1
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SetupFailureAborts(t *testing.T) {
	_, err := Run(mustParse(t, `
name: bad_setup
description: "Setup steps must succeed"
setup:
  - action: user.register
    args: { full_name: Ann, email: not-an-email, password: secret1 }
flow:
  - invoke: notify.run
    args: {}
assertions:
  - type: mail_sent
    count: 0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0] user.register: completed with VALIDATION")
}

func TestRun_WeeklyDayOverride(t *testing.T) {
	cadence := func(day string) string {
		return `
name: weekly
description: "Weekly reminders follow the configured day"
today: "2024-03-08"
weekly_day: ` + day + `
setup:
  - action: user.register
    args: { full_name: Ann, email: ann@example.com, password: secret1 }
  - action: warranty.add
    as: ann@example.com
    args: { product_name: Toaster, purchase_date: "2023-03-28", period: 1 }
flow:
  - invoke: notify.run
    args: {}
assertions:
  - type: mail_sent
    count: 1
`
	}

	// 2024-03-08 is a Friday and the Toaster expires 20 days later.
	result, err := Run(mustParse(t, cadence("friday")))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	result, err = Run(mustParse(t, cadence("monday")))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "mail_sent")
}

func TestRun_DeterministicAndIsolated(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "legacy_dedupe.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalTrace(s, first)
	require.NoError(t, err)
	b, err := MarshalTrace(s, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "each run starts from an empty database")
}

func TestResult_AddError(t *testing.T) {
	r := &Result{Pass: true}
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

func TestResult_AddTrace(t *testing.T) {
	r := &Result{}
	r.AddInvocationTrace("claim.submit", "ann@example.com", map[string]interface{}{"warranty_id": 1})
	r.AddCompletionTrace("claim.submit", "NOT_FOUND", map[string]interface{}{"message": "invalid warranty selection"})

	require.Len(t, r.Trace, 2)
	assert.Equal(t, int64(1), r.Trace[0].Seq)
	assert.Equal(t, "ann@example.com", r.Trace[0].As)
	assert.Equal(t, int64(2), r.Trace[1].Seq)
	assert.Equal(t, "NOT_FOUND", r.Trace[1].Case)
}
