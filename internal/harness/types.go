package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// CaseOK is the completion case of an operation that returned no error.
// Failed operations complete with their error kind.
const CaseOK = "OK"

// TraceEvent is one invocation or completion in a scenario run.
type TraceEvent struct {
	Type   string                 `json:"type"`
	Action string                 `json:"action,omitempty"`
	As     string                 `json:"as,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Case   string                 `json:"case,omitempty"`
	Result map[string]interface{} `json:"result,omitempty"`
	Seq    int64                  `json:"seq"`
}

// Result holds the outcome of running a scenario.
type Result struct {
	// Pass is true if all flow expectations and assertions passed.
	Pass bool

	// Trace is every invocation and completion in execution order,
	// setup steps included.
	Trace []TraceEvent

	// Errors lists failed expectations and assertions.
	Errors []string

	seq int64
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// AddInvocationTrace records an invocation.
func (r *Result) AddInvocationTrace(action, as string, args map[string]interface{}) {
	r.seq++
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventInvocation,
		Action: action,
		As:     as,
		Args:   args,
		Seq:    r.seq,
	})
}

// AddCompletionTrace records the completion of the preceding invocation.
func (r *Result) AddCompletionTrace(action, outputCase string, result map[string]interface{}) {
	r.seq++
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventCompletion,
		Action: action,
		Case:   outputCase,
		Result: result,
		Seq:    r.seq,
	})
}
