// Package ado turns the JSON event stream of `go test -json` into an Azure
// DevOps test run.
package ado

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"
)

// Outcomes and states used by Azure DevOps.
const (
	OutcomePassed      = "Passed"
	OutcomeFailed      = "Failed"
	OutcomeError       = "Error"
	OutcomeNotExecuted = "NotExecuted"

	StateInProgress = "InProgress"
	StateCompleted  = "Completed"
	StateAborted    = "Aborted"
)

// Event is one line of `go test -json` output, as documented by test2json.
type Event struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// Result is the outcome of one test.
type Result struct {
	Name         string
	Started      time.Time
	Completed    time.Time
	Outcome      string
	ErrorMessage string
	StackTrace   string
}

// Run gathers the results of one test run.
type Run struct {
	Name      string
	Comment   string
	BuildID   string
	Started   time.Time
	Completed time.Time
	Results   []Result
	// State is Aborted when at least one test failed.
	State string
}

// RunInfo describes the pipeline the tests ran in.
type RunInfo struct {
	Project     string
	Dataset     string
	Environment string
	BuildID     string
}

type pending struct {
	started time.Time
	output  []string
}

// Reporter accumulates test events into a Run.
type Reporter struct {
	run     Run
	pending map[string]*pending
	now     func() time.Time
}

// NewReporter starts a run described by info.
func NewReporter(info RunInfo) *Reporter {
	r := &Reporter{
		pending: make(map[string]*pending),
		now:     time.Now,
	}
	r.run = Run{
		Name: fmt.Sprintf("Tests e2e %s | Scénario '%s' sur %s",
			info.Project, info.Dataset, strings.ToUpper(info.Environment)),
		Comment: fmt.Sprintf("Exécuté avec %s | %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		BuildID: info.BuildID,
		Started: r.now(),
		State:   StateCompleted,
	}
	return r
}

func key(e Event) string {
	return e.Package + "." + e.Test
}

// Add records one event. Package-level events are ignored.
func (r *Reporter) Add(e Event) {
	if e.Test == "" {
		return
	}
	k := key(e)

	switch e.Action {
	case "run":
		r.pending[k] = &pending{started: e.Time}
	case "output":
		if p, ok := r.pending[k]; ok {
			p.output = append(p.output, e.Output)
		}
	case "pass", "fail", "skip":
		p, ok := r.pending[k]
		if !ok {
			p = &pending{started: e.Time}
		}
		delete(r.pending, k)
		r.run.Results = append(r.run.Results, newResult(e, p))
		if e.Action == "fail" {
			r.run.State = StateAborted
		}
	}
}

func newResult(e Event, p *pending) Result {
	res := Result{
		Name:      e.Package + "." + e.Test,
		Started:   p.started,
		Completed: e.Time,
	}

	switch e.Action {
	case "pass":
		res.Outcome = OutcomePassed
	case "skip":
		res.Outcome = OutcomeNotExecuted
	case "fail":
		msg, stack := failureDetails(p.output)
		res.ErrorMessage = msg
		res.StackTrace = stack
		if stack == "" {
			res.Outcome = OutcomeFailed
		} else {
			res.Outcome = OutcomeError
		}
	}
	return res
}

// failureDetails splits the output of a failed test into the assertion
// messages and, when the test panicked, the goroutine dump.
func failureDetails(output []string) (msg, stack string) {
	var lines []string
	for i, o := range output {
		t := strings.TrimSpace(o)
		if strings.HasPrefix(t, "panic:") {
			return strings.Join(lines, "\n"), strings.Join(output[i:], "")
		}
		if t == "" || strings.HasPrefix(t, "=== ") || strings.HasPrefix(t, "--- ") {
			continue
		}
		lines = append(lines, t)
	}
	return strings.Join(lines, "\n"), ""
}

// Consume reads a `go test -json` stream until EOF. Lines that are not JSON
// events, such as build output, are skipped.
func (r *Reporter) Consume(in io.Reader) error {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for s.Scan() {
		var e Event
		if err := json.Unmarshal(s.Bytes(), &e); err != nil {
			continue
		}
		r.Add(e)
	}
	return s.Err()
}

// Run closes the run and returns it.
func (r *Reporter) Run() Run {
	run := r.run
	run.Completed = r.now()
	run.Results = append([]Result(nil), r.run.Results...)
	return run
}
