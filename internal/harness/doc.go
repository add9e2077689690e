// Package harness runs scripted warranty scenarios against the real services.
//
// A scenario wires every service over a fresh in-memory database, a clock
// pinned to a chosen day and a recording mail sink, then executes setup and
// flow steps by name and checks the result.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	today: "2024-03-04"
//	weekly_day: monday
//	setup:
//	  - action: user.register
//	    args: { full_name: Ann, email: ann@example.com, password: secret1 }
//	flow:
//	  - invoke: warranty.add
//	    as: ann@example.com
//	    args: { product_name: Fridge, brand: Acme, purchase_date: "2024-01-01", period: 1 }
//	    expect:
//	      case: OK
//	      result: { expiry_date: "2025-01-01" }
//	assertions:
//	  - type: trace_count
//	    action: warranty.add
//	    count: 1
//	  - type: mail_sent
//	    count: 0
//	  - type: final_state
//	    table: warranties
//	    where: { product_name: Fridge }
//	    expect: { expiry_date: "2025-01-01" }
//
// "as" names the account performing a step by email. The harness remembers
// the password each account registered with and authenticates before every
// step, so a step for an unknown account completes with UNAUTHORIZED.
//
// # Completion Cases
//
// A step that returns no error completes with case OK and its result.
// A step that fails with a typed error completes with the error kind
// (VALIDATION, DUPLICATE, NOT_FOUND, UNAUTHORIZED, DELIVERY, PERSISTENCE)
// and a result holding the user-facing message. Any other error aborts the
// run. Setup steps must complete with OK.
//
// # Assertion Types
//
//   - trace_contains: action appears in trace with matching args (subset match)
//   - trace_order: actions appear in specified order
//   - trace_count: action appears exactly N times
//   - mail_sent: the sink was handed exactly N messages, optionally to one address
//   - final_state: exactly one row of a table matches where and expect
//
// # Golden Files
//
// RunWithGolden writes the trace as JSON with sorted keys and compares it
// with testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
