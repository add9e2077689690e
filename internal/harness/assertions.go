package harness

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/warranty/internal/mail"
	"github.com/roach88/warranty/internal/store"
)

// identifier is the only shape of table or column name final_state will
// format into a query.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError describes a failed assertion together with the trace it
// was evaluated against.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&b, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&b, "  Actual: %s\n", e.Actual)
	if len(e.Trace) == 0 {
		return b.String()
	}

	b.WriteString("\nFull trace:\n")
	for _, ev := range e.Trace {
		if ev.Type == EventCompletion {
			fmt.Fprintf(&b, "  [%d]   -> %s\n", ev.Seq, ev.Case)
		} else {
			fmt.Fprintf(&b, "  [%d] %s %v\n", ev.Seq, ev.Action, ev.Args)
		}
	}
	return b.String()
}

func failed(kind string, trace []TraceEvent, expected, actual string) *AssertionError {
	return &AssertionError{Type: kind, Expected: expected, Actual: actual, Trace: trace}
}

// invocations returns every invocation of action in trace order.
func invocations(trace []TraceEvent, action string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Type == EventInvocation && ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range invocations(trace, a.Action) {
		if matchArgs(ev.Args, a.Args) {
			return nil
		}
	}
	return failed(AssertTraceContains, trace,
		fmt.Sprintf("action %s with args %v", a.Action, a.Args), "not found in trace")
}

// assertTraceOrder compares the first invocation of each listed action.
// Other steps may run in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int64, len(a.Actions))
	for _, name := range a.Actions {
		calls := invocations(trace, name)
		if len(calls) == 0 {
			return failed(AssertTraceOrder, trace,
				fmt.Sprintf("all actions present: %v", a.Actions), "missing action: "+name)
		}
		first[name] = calls[0].Seq
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, next := a.Actions[i-1], a.Actions[i]
		if first[prev] >= first[next] {
			return failed(AssertTraceOrder, trace,
				fmt.Sprintf("actions in order: %v", a.Actions),
				fmt.Sprintf("%s (seq %d) should be before %s (seq %d)", prev, first[prev], next, first[next]))
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	if n := len(invocations(trace, a.Action)); n != a.Count {
		return failed(AssertTraceCount, trace,
			fmt.Sprintf("%d occurrences of %s", a.Count, a.Action),
			fmt.Sprintf("%d occurrences", n))
	}
	return nil
}

// assertMailSent counts the messages handed to the sink, only those
// addressed to a.To when it is set.
func assertMailSent(trace []TraceEvent, sink *mail.Recorder, a Assertion) error {
	var recipients []string
	n := 0
	for _, m := range sink.Messages() {
		recipients = append(recipients, m.To)
		if a.To == "" || strings.EqualFold(m.To, a.To) {
			n++
		}
	}
	if n == a.Count {
		return nil
	}

	target := a.To
	if target == "" {
		target = "any recipient"
	}
	return failed(AssertMailSent, trace,
		fmt.Sprintf("%d messages to %s", a.Count, target),
		fmt.Sprintf("%d messages (recipients: %v)", n, recipients))
}

// assertFinalState requires exactly one row of a.Table to match a.Where and
// checks the columns named in a.Expect against it.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	if a.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}
	if !identifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, identifier)
	}
	where, args, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := "SELECT * FROM " + a.Table
	if where != "" {
		query += " WHERE " + where
	}
	row, columns, matched, err := selectOne(ctx, st.DB(), query, args)
	if err != nil {
		return failed(AssertFinalState, nil, "query table "+a.Table, fmt.Sprintf("query error: %v", err))
	}

	desc := formatWhereClause(a.Where)
	switch {
	case matched == 0:
		return failed(AssertFinalState, nil, fmt.Sprintf("row in %s where %s", a.Table, desc), "row not found")
	case matched > 1:
		return failed(AssertFinalState, nil,
			fmt.Sprintf("exactly one row in %s where %s", a.Table, desc),
			"multiple rows matched (assertion is ambiguous)")
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, col := range keys {
		want := a.Expect[col]
		got, ok := row[col]
		if !ok {
			return failed(AssertFinalState, nil,
				fmt.Sprintf("field %q to exist", col),
				fmt.Sprintf("field %q not present in result columns: %v", col, columns))
		}
		if !stateValuesEqual(want, got) {
			return failed(AssertFinalState, nil,
				fmt.Sprintf("field %q = %v (type %T)", col, want, want),
				fmt.Sprintf("field %q = %v (type %T)", col, got, got))
		}
	}
	return nil
}

// selectOne scans the first row of query into a column map. matched is 0, 1
// or 2, where 2 means at least one more row followed.
func selectOne(ctx context.Context, db *sql.DB, query string, args []interface{}) (row map[string]interface{}, columns []string, matched int, err error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, 0, err
	}
	defer rows.Close()

	if columns, err = rows.Columns(); err != nil {
		return nil, nil, 0, fmt.Errorf("get columns: %w", err)
	}
	if !rows.Next() {
		return nil, columns, 0, rows.Err()
	}

	values := make([]interface{}, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, columns, 0, fmt.Errorf("scan row: %w", err)
	}

	row = make(map[string]interface{}, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	if rows.Next() {
		return row, columns, 2, nil
	}
	return row, columns, 1, rows.Err()
}

// buildWhereClause renders where as "col = ?" terms joined by AND, in
// sorted column order, with the values as bound arguments.
func buildWhereClause(where map[string]interface{}) (string, []interface{}, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	cols := make([]string, 0, len(where))
	for col := range where {
		if !identifier.MatchString(col) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", col, identifier)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	terms := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		terms[i] = col + " = ?"
		args[i] = toSQLValue(where[col])
	}
	return strings.Join(terms, " AND "), args, nil
}

func toSQLValue(v interface{}) interface{} {
	switch v.(type) {
	case string, int, int64, bool, nil:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	cols := make([]string, 0, len(where))
	for col := range where {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for i, col := range cols {
		cols[i] = fmt.Sprintf("%s=%v", col, where[col])
	}
	return strings.Join(cols, " AND ")
}

// stateValuesEqual compares a YAML value with a column value read back from
// SQLite, where integers arrive as int64, booleans as 0/1 and TEXT may be
// returned as bytes.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch want := expected.(type) {
	case string:
		switch got := actual.(type) {
		case string:
			return want == got
		case []byte:
			return want == string(got)
		}
		return false
	case int:
		return equalInt(int64(want), actual)
	case int64:
		return equalInt(want, actual)
	case bool:
		if got, ok := actual.(bool); ok {
			return want == got
		}
		if got, ok := actual.(int64); ok {
			return want == (got != 0)
		}
		return false
	}
	return reflect.DeepEqual(expected, actual)
}

func equalInt(want int64, actual interface{}) bool {
	switch got := actual.(type) {
	case int64:
		return want == got
	case int:
		return want == int64(got)
	}
	return false
}

// matchArgs reports whether every expected key is present in actual with an
// equal value. Extra keys in actual are ignored.
func matchArgs(actual interface{}, expected map[string]interface{}) bool {
	if len(expected) == 0 {
		return true
	}
	got, ok := actual.(map[string]interface{})
	if !ok {
		return false
	}
	for k, want := range expected {
		v, present := got[k]
		if !present || !reflect.DeepEqual(v, want) {
			return false
		}
	}
	return true
}

// AssertionContext carries what final_state and mail_sent read from.
type AssertionContext struct {
	Store *store.Store
	Sink  *mail.Recorder
	Ctx   context.Context
}

// EvaluateAssertions checks every assertion and returns one message per
// failure, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(i, result.Trace, a, actx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(i int, trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertMailSent:
		if actx == nil || actx.Sink == nil {
			return fmt.Errorf("assertion[%d]: mail_sent requires a recording sink", i)
		}
		return assertMailSent(trace, actx.Sink, a)
	case AssertFinalState:
		if actx == nil || actx.Store == nil {
			return fmt.Errorf("assertion[%d]: final_state requires database context", i)
		}
		return assertFinalState(actx.Ctx, actx.Store, a)
	default:
		return fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
	}
}
