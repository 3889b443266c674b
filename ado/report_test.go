package ado

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stream = `go: downloading github.com/ptgott/e2ekit v0.1.0
{"Time":"2024-03-01T10:00:00Z","Action":"start","Package":"shop/e2e"}
{"Time":"2024-03-01T10:00:00Z","Action":"run","Package":"shop/e2e","Test":"TestLogin"}
{"Time":"2024-03-01T10:00:00Z","Action":"output","Package":"shop/e2e","Test":"TestLogin","Output":"=== RUN   TestLogin\n"}
{"Time":"2024-03-01T10:00:02Z","Action":"output","Package":"shop/e2e","Test":"TestLogin","Output":"--- PASS: TestLogin (2.00s)\n"}
{"Time":"2024-03-01T10:00:02Z","Action":"pass","Package":"shop/e2e","Test":"TestLogin","Elapsed":2}
{"Time":"2024-03-01T10:00:02Z","Action":"run","Package":"shop/e2e","Test":"TestCheckout"}
{"Time":"2024-03-01T10:00:02Z","Action":"output","Package":"shop/e2e","Test":"TestCheckout","Output":"=== RUN   TestCheckout\n"}
{"Time":"2024-03-01T10:00:05Z","Action":"output","Package":"shop/e2e","Test":"TestCheckout","Output":"    checkout_test.go:42: expected 3 items, got 2\n"}
{"Time":"2024-03-01T10:00:05Z","Action":"output","Package":"shop/e2e","Test":"TestCheckout","Output":"--- FAIL: TestCheckout (3.00s)\n"}
{"Time":"2024-03-01T10:00:05Z","Action":"fail","Package":"shop/e2e","Test":"TestCheckout","Elapsed":3}
{"Time":"2024-03-01T10:00:05Z","Action":"run","Package":"shop/e2e","Test":"TestRefund"}
{"Time":"2024-03-01T10:00:05Z","Action":"output","Package":"shop/e2e","Test":"TestRefund","Output":"    refund_test.go:10: refunds are disabled\n"}
{"Time":"2024-03-01T10:00:05Z","Action":"skip","Package":"shop/e2e","Test":"TestRefund"}
{"Time":"2024-03-01T10:00:05Z","Action":"fail","Package":"shop/e2e","Elapsed":5}
`

func at(sec int) time.Time {
	return time.Date(2024, 3, 1, 10, 0, sec, 0, time.UTC)
}

func TestReporterConsume(t *testing.T) {
	r := NewReporter(RunInfo{Project: "Shop", Dataset: "smoke", Environment: "staging", BuildID: "77"})
	require.NoError(t, r.Consume(strings.NewReader(stream)))
	run := r.Run()

	assert.Equal(t, "Tests e2e Shop | Scénario 'smoke' sur STAGING", run.Name)
	assert.Equal(t, "77", run.BuildID)
	assert.Equal(t, StateAborted, run.State)
	assert.False(t, run.Completed.Before(run.Started))

	want := []Result{
		{
			Name:      "shop/e2e.TestLogin",
			Started:   at(0),
			Completed: at(2),
			Outcome:   OutcomePassed,
		},
		{
			Name:         "shop/e2e.TestCheckout",
			Started:      at(2),
			Completed:    at(5),
			Outcome:      OutcomeFailed,
			ErrorMessage: "checkout_test.go:42: expected 3 items, got 2",
		},
		{
			Name:      "shop/e2e.TestRefund",
			Started:   at(5),
			Completed: at(5),
			Outcome:   OutcomeNotExecuted,
		},
	}
	if diff := cmp.Diff(want, run.Results); diff != "" {
		t.Errorf("unexpected results (-want +got):\n%s", diff)
	}
}

func TestReporterCompletedWhenNothingFails(t *testing.T) {
	r := NewReporter(RunInfo{})
	r.Add(Event{Time: at(0), Action: "run", Package: "p", Test: "TestA"})
	r.Add(Event{Time: at(1), Action: "pass", Package: "p", Test: "TestA"})

	run := r.Run()
	assert.Equal(t, StateCompleted, run.State)
	require.Len(t, run.Results, 1)
}

func TestFailureDetails(t *testing.T) {
	testCases := []struct {
		description   string
		output        []string
		expectedMsg   string
		expectedStack string
	}{
		{
			description: "assertion failures",
			output: []string{
				"=== RUN   TestA\n",
				"    a_test.go:1: first\n",
				"    a_test.go:2: second\n",
				"--- FAIL: TestA (0.00s)\n",
			},
			expectedMsg: "a_test.go:1: first\na_test.go:2: second",
		},
		{
			description: "panic",
			output: []string{
				"=== RUN   TestA\n",
				"    a_test.go:1: before\n",
				"panic: boom [recovered]\n",
				"goroutine 7 [running]:\n",
			},
			expectedMsg:   "a_test.go:1: before",
			expectedStack: "panic: boom [recovered]\ngoroutine 7 [running]:\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			msg, stack := failureDetails(tc.output)
			assert.Equal(t, tc.expectedMsg, msg)
			assert.Equal(t, tc.expectedStack, stack)
		})
	}
}

func TestPanicIsAnError(t *testing.T) {
	r := NewReporter(RunInfo{})
	r.Add(Event{Time: at(0), Action: "run", Package: "p", Test: "TestA"})
	r.Add(Event{Time: at(0), Action: "output", Package: "p", Test: "TestA", Output: "panic: nil map\n"})
	r.Add(Event{Time: at(1), Action: "fail", Package: "p", Test: "TestA"})

	run := r.Run()
	require.Len(t, run.Results, 1)
	assert.Equal(t, OutcomeError, run.Results[0].Outcome)
	assert.Equal(t, "panic: nil map\n", run.Results[0].StackTrace)
}
