package ado

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/test"
	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/logging"
)

// ConnectionInfo locates the Azure DevOps project receiving the run.
type ConnectionInfo struct {
	Token   string
	URL     string
	Project string
	// PAT is true for personal access tokens, false for the pipeline's
	// bearer token.
	PAT bool
}

// ConnectionInfoFromEnv reads the variables set by Azure Pipelines. TOKEN,
// when set, is a personal access token taking precedence over
// SYSTEM_ACCESSTOKEN.
func ConnectionInfoFromEnv() ConnectionInfo {
	pat := strings.TrimSpace(os.Getenv("TOKEN"))
	token := pat
	if token == "" {
		token = os.Getenv("SYSTEM_ACCESSTOKEN")
	}
	return ConnectionInfo{
		Token:   token,
		URL:     os.Getenv("SYSTEM_TEAMFOUNDATIONCOLLECTIONURI"),
		Project: os.Getenv("SYSTEM_TEAMPROJECT"),
		PAT:     pat != "",
	}
}

// CheckAndSetDefaults makes sure every piece of the connection is there.
func (c ConnectionInfo) CheckAndSetDefaults() error {
	switch {
	case strings.TrimSpace(c.Token) == "":
		return errors.New("no access token: set SYSTEM_ACCESSTOKEN or TOKEN")
	case strings.TrimSpace(c.URL) == "":
		return errors.New("no Azure DevOps URL: set SYSTEM_TEAMFOUNDATIONCOLLECTIONURI")
	case strings.TrimSpace(c.Project) == "":
		return errors.New("no Azure DevOps project: set SYSTEM_TEAMPROJECT")
	}
	return nil
}

// testAPI is the part of the Azure DevOps test client used to publish runs.
type testAPI interface {
	CreateTestRun(context.Context, test.CreateTestRunArgs) (*test.TestRun, error)
	AddTestResultsToTestRun(context.Context, test.AddTestResultsToTestRunArgs) (*[]test.TestCaseResult, error)
	UpdateTestRun(context.Context, test.UpdateTestRunArgs) (*test.TestRun, error)
}

// Client publishes runs to one project.
type Client struct {
	api     testAPI
	project string
}

// NewClient connects to the project described by info.
func NewClient(ctx context.Context, info ConnectionInfo) (*Client, error) {
	if err := info.CheckAndSetDefaults(); err != nil {
		return nil, err
	}

	var conn *azuredevops.Connection
	if info.PAT {
		conn = azuredevops.NewPatConnection(info.URL, info.Token)
	} else {
		conn = azuredevops.NewAnonymousConnection(info.URL)
		conn.AuthorizationString = "Bearer " + info.Token
	}

	api, err := test.NewClient(ctx, conn)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, project: info.Project}, nil
}

func ptr[T any](v T) *T {
	return &v
}

func adoTime(t time.Time) *azuredevops.Time {
	return &azuredevops.Time{Time: t}
}

func isoTime(t time.Time) *string {
	return ptr(t.UTC().Format(time.RFC3339Nano))
}

func caseResults(results []Result) []test.TestCaseResult {
	out := make([]test.TestCaseResult, 0, len(results))
	for _, r := range results {
		cr := test.TestCaseResult{
			AutomatedTestName: ptr(r.Name),
			TestCaseTitle:     ptr(r.Name),
			StartedDate:       adoTime(r.Started),
			CompletedDate:     adoTime(r.Completed),
			DurationInMs:      ptr(float64(r.Completed.Sub(r.Started).Milliseconds())),
			Outcome:           ptr(r.Outcome),
			State:             ptr(StateCompleted),
		}
		if r.ErrorMessage != "" {
			cr.ErrorMessage = ptr(r.ErrorMessage)
		}
		if r.StackTrace != "" {
			cr.StackTrace = ptr(r.StackTrace)
		}
		out = append(out, cr)
	}
	return out
}

// CreateTestRun creates an in-progress run, adds the results and completes
// it. An aborted run is saved as completed first, otherwise Azure DevOps
// marks every result as failed.
func (c *Client) CreateTestRun(ctx context.Context, run Run) error {
	created, err := c.api.CreateTestRun(ctx, test.CreateTestRunArgs{
		TestRun: &test.RunCreateModel{
			Automated:   ptr(true),
			Name:        ptr(run.Name),
			Comment:     ptr(run.Comment),
			StartDate:   isoTime(run.Started),
			State:       ptr(StateInProgress),
			Build:       &test.ShallowReference{Id: ptr(run.BuildID)},
		},
		Project: ptr(c.project),
	})
	if err != nil {
		return err
	}
	if created == nil || created.Id == nil {
		return errors.New("the test run was not created, check the token permissions")
	}

	results := caseResults(run.Results)
	if _, err := c.api.AddTestResultsToTestRun(ctx, test.AddTestResultsToTestRunArgs{
		Results: &results,
		Project: ptr(c.project),
		RunId:   created.Id,
	}); err != nil {
		return err
	}

	states := []string{StateCompleted}
	if run.State == StateAborted {
		states = append(states, StateAborted)
	}
	for _, s := range states {
		if _, err := c.api.UpdateTestRun(ctx, test.UpdateTestRunArgs{
			RunUpdateModel: &test.RunUpdateModel{
				State:         ptr(s),
				CompletedDate: isoTime(run.Completed),
			},
			Project: ptr(c.project),
			RunId:   created.Id,
		}); err != nil {
			return err
		}
	}

	log.Info().Int("id", *created.Id).Int("results", len(results)).Msg("azure devops test run created")
	return nil
}

// Publisher sends a finished run somewhere.
type Publisher interface {
	CreateTestRun(ctx context.Context, run Run) error
}

// Publish sends run through p. Failures are logged and swallowed so that
// reporting never hides the outcome of the tests themselves.
func Publish(ctx context.Context, p Publisher, run Run) {
	log.Debug().Interface("run", run).Msg("publishing test run")
	if err := p.CreateTestRun(ctx, run); err != nil {
		logging.DetailError(err)
	}
}
