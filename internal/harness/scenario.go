package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/warranty/internal/dates"
)

// DefaultToday is the calendar day a scenario starts on when it names none.
// It is a Monday, the default weekly reminder day.
const DefaultToday = "2024-03-04"

// Scenario is a scripted run against a fresh database.
// Setup steps establish state, flow steps are the behavior under test, and
// assertions check the resulting trace, mailbox and tables.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Today pins the clock (YYYY-MM-DD). Defaults to DefaultToday.
	Today string `yaml:"today,omitempty"`

	// WeeklyDay overrides the weekly reminder day (e.g. "friday").
	WeeklyDay string `yaml:"weekly_day,omitempty"`

	// Setup steps must all succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow is the main test flow. Each step may check its completion.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace, mailbox and state.
	// Supported types: trace_contains, trace_order, trace_count, mail_sent, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep is a setup invocation.
type ActionStep struct {
	// Action is the operation name (e.g. "warranty.add").
	Action string `yaml:"action"`

	// As is the email of the account performing the action.
	As string `yaml:"as,omitempty"`

	Args map[string]interface{} `yaml:"args"`
}

// FlowStep is an invocation in the main flow.
type FlowStep struct {
	// Invoke is the operation name.
	Invoke string `yaml:"invoke"`

	// As is the email of the account performing the action.
	As string `yaml:"as,omitempty"`

	Args map[string]interface{} `yaml:"args"`

	// Expect specifies the expected completion.
	// If nil, no validation is performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is CaseOK or an error kind such as "DUPLICATE".
	Case string `yaml:"case"`

	// Result is a subset match against the completion result.
	Result map[string]interface{} `yaml:"result,omitempty"`
}

// Assertion validates trace, mailbox or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": action appears in trace with args
	// - "trace_order": actions appear in order
	// - "trace_count": action appears exactly N times
	// - "mail_sent": the sink was handed exactly N messages, optionally to one address
	// - "final_state": exactly one row of a table matches where and expect
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args is a subset match used by trace_contains.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Table, Where and Expect are used by final_state.
	Table  string                 `yaml:"table,omitempty"`
	Where  map[string]interface{} `yaml:"where,omitempty"`
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Count is used by trace_count and mail_sent.
	Count int `yaml:"count,omitempty"`

	// To filters mail_sent to one recipient.
	To string `yaml:"to,omitempty"`

	// Actions is the expected order for trace_order.
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertMailSent      = "mail_sent"
	AssertFinalState    = "final_state"
)

// LoadScenario reads a scenario file. Unknown keys are rejected so a typo
// cannot silently drop a step or an assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML from memory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	switch {
	case s.Name == "":
		return fmt.Errorf("name is required")
	case s.Description == "":
		return fmt.Errorf("description is required")
	case len(s.Flow) == 0:
		return fmt.Errorf("flow list is required and must be non-empty")
	case len(s.Assertions) == 0:
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Today != "" {
		if _, err := dates.Parse(s.Today); err != nil {
			return fmt.Errorf("today: %w", err)
		}
	}
	if s.WeeklyDay != "" {
		if _, ok := parseWeekday(s.WeeklyDay); !ok {
			return fmt.Errorf("weekly_day: unknown day %q", s.WeeklyDay)
		}
	}

	for i, step := range s.Setup {
		if err := checkStep(fmt.Sprintf("setup[%d]", i), "action", step.Action, step.Args); err != nil {
			return err
		}
	}
	for i, step := range s.Flow {
		label := fmt.Sprintf("flow[%d]", i)
		if err := checkStep(label, "invoke", step.Invoke, step.Args); err != nil {
			return err
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("%s.expect: case is required", label)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// checkStep requires a known action and an args map, which may be empty.
func checkStep(label, field, action string, args map[string]interface{}) error {
	if action == "" {
		return fmt.Errorf("%s: %s is required", label, field)
	}
	if args == nil {
		return fmt.Errorf("%s: args is required (use empty map if no args)", label)
	}
	if _, ok := operations[action]; !ok {
		return fmt.Errorf("%s: unknown action %q", label, action)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	missing := func(what string) error {
		return fmt.Errorf("assertions[%d]: %s is required for %s", index, what, a.Type)
	}
	negative := func() error {
		return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Action == "" {
			return missing("action")
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return missing("actions list")
		}
	case AssertTraceCount:
		if a.Action == "" {
			return missing("action")
		}
		if a.Count < 0 {
			return negative()
		}
	case AssertMailSent:
		if a.Count < 0 {
			return negative()
		}
	case AssertFinalState:
		if a.Table == "" {
			return missing("table")
		}
		if len(a.Expect) == 0 {
			return missing("expect")
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

var weekdays = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3,
	"thursday": 4, "friday": 5, "saturday": 6,
}

func parseWeekday(s string) (int, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}
