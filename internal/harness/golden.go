package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Today        string       `json:"today"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map so every object in the
// output, events included, is written with sorted keys.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
		}
		if event.Action != "" {
			eventMap["action"] = event.Action
		}
		if event.As != "" {
			eventMap["as"] = event.As
		}
		if event.Args != nil {
			eventMap["args"] = event.Args
		}
		if event.Case != "" {
			eventMap["case"] = event.Case
		}
		if event.Result != nil {
			eventMap["result"] = event.Result
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"today":         s.Today,
		"trace":         traceList,
	}
}

// MarshalTrace renders a scenario trace as indented JSON with sorted keys.
func MarshalTrace(scenario *Scenario, result *Result) ([]byte, error) {
	today := scenario.Today
	if today == "" {
		today = DefaultToday
	}
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Today:        today,
		Trace:        result.Trace,
	}
	out, err := json.MarshalIndent(snapshot.toCanonicalMap(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := MarshalTrace(scenario, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
