package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/warranty/internal/account"
	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/attach"
	"github.com/roach88/warranty/internal/catalog"
	"github.com/roach88/warranty/internal/claim"
	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/mail"
	"github.com/roach88/warranty/internal/notify"
	"github.com/roach88/warranty/internal/report"
	"github.com/roach88/warranty/internal/store"
	"github.com/roach88/warranty/internal/testutil"
	"github.com/roach88/warranty/internal/warranty"
)

// SeedToken is the secret key scenarios pass to admin.seed.
const SeedToken = "scenario-secret"

// Harness is the scenario execution engine.
// It runs steps against real services with a pinned clock and a
// recording mail sink.
type Harness struct {
	env *env
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and wire the services
// 2. Execute setup steps (any failure aborts the run)
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(st, scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := &Result{Pass: true}

	for i, step := range scenario.Setup {
		outputCase, _, err := h.invoke(ctx, result, step.Action, step.As, step.Args)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Action, err)
		}
		if outputCase != CaseOK {
			return nil, fmt.Errorf("setup[%d] %s: completed with %s", i, step.Action, outputCase)
		}
	}

	for i, step := range scenario.Flow {
		outputCase, res, err := h.invoke(ctx, result, step.Invoke, step.As, step.Args)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}
		if step.Expect != nil {
			checkExpect(result, i, step, outputCase, res)
		}
	}

	actx := &AssertionContext{Store: st, Sink: h.env.sink, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(st *store.Store, scenario *Scenario) (*Harness, error) {
	today := DefaultToday
	if scenario.Today != "" {
		today = scenario.Today
	}
	day, err := dates.Parse(today)
	if err != nil {
		return nil, fmt.Errorf("today: %w", err)
	}

	weekly := notify.DefaultWeeklyDay
	if scenario.WeeklyDay != "" {
		d, ok := parseWeekday(scenario.WeeklyDay)
		if !ok {
			return nil, fmt.Errorf("weekly_day: unknown day %q", scenario.WeeklyDay)
		}
		weekly = time.Weekday(d)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := testutil.NewFixedClock(startOfDay(day))
	sink := &mail.Recorder{}
	cat := catalog.NewService(st, logger)

	return &Harness{
		env: &env{
			store:      st,
			clock:      clk,
			sink:       sink,
			accounts:   account.NewService(st, clk, logger, account.WithCost(bcrypt.MinCost), account.WithSecretKey(SeedToken)),
			catalog:    cat,
			warranties: warranty.NewService(st, cat, discardFiles{}, clk, logger),
			claims:     claim.NewService(st, clk, logger),
			reports:    report.NewService(st, clk, logger),
			notifier:   notify.NewEngine(st, sink, clk, logger, notify.WithWeeklyDay(weekly)),
			passwords:  map[string]string{},
		},
	}, nil
}

// invoke runs one operation and records its invocation and completion.
// Domain errors become the completion case; anything else is returned.
func (h *Harness) invoke(ctx context.Context, result *Result, action, as string, a map[string]interface{}) (string, map[string]interface{}, error) {
	op, ok := operations[action]
	if !ok {
		return "", nil, fmt.Errorf("unknown action %q", action)
	}

	result.AddInvocationTrace(action, as, a)

	res, err := op(ctx, h.env, as, args(a))
	if err != nil {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			return "", nil, err
		}
		res = map[string]interface{}{"message": apperr.Message(err)}
		outputCase := string(ae.Kind)
		result.AddCompletionTrace(action, outputCase, res)
		return outputCase, res, nil
	}

	res, err = normalizeMap(res)
	if err != nil {
		return "", nil, fmt.Errorf("normalize result: %w", err)
	}
	result.AddCompletionTrace(action, CaseOK, res)
	return CaseOK, res, nil
}

func checkExpect(result *Result, index int, step FlowStep, outputCase string, res map[string]interface{}) {
	if step.Expect.Case != outputCase {
		detail := ""
		if msg, ok := res["message"].(string); ok {
			detail = fmt.Sprintf(" (%s)", msg)
		}
		result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s%s",
			index, step.Invoke, step.Expect.Case, outputCase, detail))
		return
	}

	expected, err := normalizeMap(step.Expect.Result)
	if err != nil {
		result.AddError(fmt.Sprintf("flow[%d] %s: normalize expected result: %v", index, step.Invoke, err))
		return
	}
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		actual, ok := res[k]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s missing", k))
			continue
		}
		if !reflect.DeepEqual(expected[k], actual) {
			mismatches = append(mismatches, fmt.Sprintf("%s = %v, want %v", k, actual, expected[k]))
		}
	}
	if len(mismatches) > 0 {
		result.AddError(fmt.Sprintf("flow[%d] %s: result mismatch: %s",
			index, step.Invoke, strings.Join(mismatches, "; ")))
	}
}

// normalizeMap round-trips m through JSON so YAML ints, Go ints and int64s
// all compare as float64.
func normalizeMap(m map[string]interface{}) (map[string]interface{}, error) {
	if m == nil {
		return map[string]interface{}{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// discardFiles accepts invoice uploads without writing them anywhere.
type discardFiles struct{}

func (discardFiles) Save(userID int64, day time.Time, u attach.Upload) (string, error) {
	if _, err := io.Copy(io.Discard, u.Body); err != nil {
		return "", err
	}
	return attach.BuildRef(userID, day, u.Filename), nil
}

func (discardFiles) Remove(string) error { return nil }
