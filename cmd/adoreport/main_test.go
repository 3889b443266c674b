package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptgott/e2ekit/ado"
)

const output = `{"Time":"2024-03-01T10:00:00Z","Action":"run","Package":"shop/e2e","Test":"TestLogin"}
{"Time":"2024-03-01T10:00:02Z","Action":"pass","Package":"shop/e2e","Test":"TestLogin","Elapsed":2}
{"Time":"2024-03-01T10:00:02Z","Action":"run","Package":"shop/e2e","Test":"TestCheckout"}
{"Time":"2024-03-01T10:00:03Z","Action":"output","Package":"shop/e2e","Test":"TestCheckout","Output":"    checkout_test.go:42: expected 3 items, got 2\n"}
{"Time":"2024-03-01T10:00:05Z","Action":"fail","Package":"shop/e2e","Test":"TestCheckout","Elapsed":3}
`

type publisher struct {
	runs []ado.Run
	err  error
}

func (p *publisher) CreateTestRun(_ context.Context, run ado.Run) error {
	p.runs = append(p.runs, run)
	return p.err
}

func TestParseFlags(t *testing.T) {
	testCases := []struct {
		description string
		env         map[string]string
		args        []string
		expected    options
	}{
		{
			description: "defaults",
			args:        nil,
			expected:    options{level: "info", dataset: "default"},
		},
		{
			description: "from the environment",
			env:         map[string]string{"DATASET": "smoke", "TARGET_ENV": "staging"},
			expected:    options{level: "info", dataset: "smoke", env: "staging"},
		},
		{
			description: "flags win",
			env:         map[string]string{"DATASET": "smoke"},
			args:        []string{"-dataset", "full", "-env", "prod", "-tee", "-dry-run", "-level", "debug"},
			expected:    options{level: "debug", dataset: "full", env: "prod", tee: true, dryRun: true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			t.Setenv("DATASET", "")
			t.Setenv("TARGET_ENV", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			o, err := parseFlags(flag.NewFlagSet("adoreport", flag.ContinueOnError), tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, o)
		})
	}
}

func TestReport(t *testing.T) {
	t.Setenv("SYSTEM_TEAMPROJECT", "Shop")
	t.Setenv("BUILD_BUILDID", "77")

	p := &publisher{}
	var out bytes.Buffer
	run := report(context.Background(), options{dataset: "smoke", env: "staging", tee: true},
		strings.NewReader(output), &out,
		func(context.Context) (ado.Publisher, error) { return p, nil })

	assert.Equal(t, output, out.String())
	require.Len(t, p.runs, 1)
	assert.Equal(t, run, p.runs[0])
	assert.Equal(t, "77", run.BuildID)
	assert.Equal(t, ado.StateAborted, run.State)
	require.Len(t, run.Results, 2)
	assert.Equal(t, ado.OutcomePassed, run.Results[0].Outcome)
	assert.Equal(t, ado.OutcomeFailed, run.Results[1].Outcome)
}

func TestReportNeverFails(t *testing.T) {
	testCases := []struct {
		description string
		options     options
		connect     func(*publisher) func(context.Context) (ado.Publisher, error)
		published   int
	}{
		{
			description: "dry run",
			options:     options{dryRun: true},
			connect: func(p *publisher) func(context.Context) (ado.Publisher, error) {
				return func(context.Context) (ado.Publisher, error) { return p, nil }
			},
			published: 0,
		},
		{
			description: "no connection",
			connect: func(*publisher) func(context.Context) (ado.Publisher, error) {
				return func(context.Context) (ado.Publisher, error) { return nil, errors.New("no access token") }
			},
			published: 0,
		},
		{
			description: "rejected run",
			connect: func(p *publisher) func(context.Context) (ado.Publisher, error) {
				p.err = errors.New("403 Forbidden")
				return func(context.Context) (ado.Publisher, error) { return p, nil }
			},
			published: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			p := &publisher{}
			run := report(context.Background(), tc.options, strings.NewReader(output), io.Discard, tc.connect(p))
			assert.Len(t, p.runs, tc.published)
			assert.Len(t, run.Results, 2)
		})
	}
}
