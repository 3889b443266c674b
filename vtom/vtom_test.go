package vtom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scheduler is a fake Vtom API reporting a scripted sequence of statuses.
type scheduler struct {
	mu       sync.Mutex
	actions  []action
	statuses []string
	polls    int
	apiKeys  []string
}

func (s *scheduler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys = append(s.apiKeys, r.Header.Get("X-API-KEY"))

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/prod/applications/billing/jobs/nightly/action":
		var a action
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.actions = append(s.actions, a)
	case r.Method == http.MethodGet && r.URL.Path == "/prod/applications/billing/jobs/nightly/status":
		st := s.statuses[min(s.polls, len(s.statuses)-1)]
		s.polls++
		_ = json.NewEncoder(w).Encode(jobStatus{Status: st})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, s *scheduler) *Client {
	t.Helper()
	srv := httptest.NewTLSServer(s)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", WithPollInterval(time.Millisecond), WithMaxPolls(4), WithRetryMax(0))
}

func TestRunJob(t *testing.T) {
	cases := []struct {
		description   string
		statuses      []string
		expected      bool
		expectedPolls int
	}{
		{
			description:   "finishes on the first check",
			statuses:      []string{StatusFinished},
			expected:      true,
			expectedPolls: 1,
		},
		{
			description:   "finishes after a while",
			statuses:      []string{StatusRunning, StatusRunning, StatusFinished},
			expected:      true,
			expectedPolls: 3,
		},
		{
			description:   "never finishes",
			statuses:      []string{StatusRunning},
			expected:      false,
			expectedPolls: 4,
		},
	}

	for _, tc := range cases {
		t.Run(tc.description, func(t *testing.T) {
			s := &scheduler{statuses: tc.statuses}
			c := newTestClient(t, s)

			ok, err := c.RunJob(context.Background(), "prod", "billing", "nightly")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ok)
			assert.Equal(t, tc.expectedPolls, s.polls)

			assert.Equal(t, []action{
				{Comment: "wdio-test: ChangeStatus('Finished')", Type: "ChangeStatus", Status: StatusFinished},
				{Comment: "wdio-test: ChangeStatus('Running')", Type: "ChangeStatus", Status: StatusRunning},
			}, s.actions)
			for _, k := range s.apiKeys {
				assert.Equal(t, "secret", k)
			}
		})
	}
}

func TestRunJobWrapsErrors(t *testing.T) {
	c := newTestClient(t, &scheduler{statuses: []string{StatusFinished}})

	ok, err := c.RunJob(context.Background(), "prod", "billing", "unknown")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "vtom error: ")
	assert.Contains(t, err.Error(), "404")
}

func TestRunJobHonorsContext(t *testing.T) {
	s := &scheduler{statuses: []string{StatusRunning}}
	srv := httptest.NewTLSServer(s)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "secret", WithPollInterval(time.Hour), WithRetryMax(0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ok, err := c.RunJob(ctx, "prod", "billing", "nightly")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
