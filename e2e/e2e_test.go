package e2e

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptgott/e2ekit/testcontext"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		testcontext.EnvTargetEnv,
		testcontext.EnvDataset,
		testcontext.EnvMailProvider,
		testcontext.EnvEmail,
		testcontext.EnvUserPassword,
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv(testcontext.EnvUserPassword, "Secret-123")
}

var config = testEnvironmentConfig{
	dataset:    `{"shop": {"name": "Boutique"}, "user": {"address": "1 rue de la Paix"}}`,
	parameters: map[string]any{"url": "https://staging.shop.test"},
}

// The application under test would send this mail when the account of u is
// created.
func sendActivationMail(tc *testcontext.TestContext, code int) error {
	u := tc.User()
	return tc.MailService().SendMessage(
		"no-reply@shop.test",
		u.Email,
		"Activate your account",
		fmt.Sprintf("<p>Hello %s, your activation code is %d</p>", u.Firstname, code),
	)
}

func TestActivationMail(t *testing.T) {
	clearEnv(t)
	te := startTestEnvironment(t, config)
	tc := te.suite(config)
	require.NoError(t, tc.Initialize())

	u := tc.User()
	assert.True(t, strings.HasSuffix(u.Email, "@maildrop.cc"), u.Email)
	assert.Equal(t, "Secret-123", u.Password)
	address, _ := tc.Value("user", "address")
	assert.Equal(t, "1 rue de la Paix", address)

	// Unrelated mail for someone else must not show up.
	require.NoError(t, tc.MailService().SendMessage("no-reply@shop.test", "someone@maildrop.cc", "Activate your account", "<p>not yours</p>"))
	require.NoError(t, sendActivationMail(tc, 4242))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	content, found, err := tc.MailService().WaitForMessage(ctx, u.Email, "NO-REPLY@shop", "activate")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, content, "your activation code is 4242")
	assert.Contains(t, content, u.Firstname)

	// A mail that never comes is a soft failure.
	content, found, err = tc.MailService().WaitForMessage(ctx, u.Email, "no-reply@shop", "password reset")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, content)
}

func TestWaitForMessageNeedsADeadline(t *testing.T) {
	clearEnv(t)
	te := startTestEnvironment(t, config)
	tc := te.suite(config)
	require.NoError(t, tc.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, found, err := tc.MailService().WaitForMessage(ctx, tc.User().Email, "no-reply@shop", "activate")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, found)
}

// A second run reusing the recorded user reads the mail sent during the
// first one.
func TestReuseRecordedUser(t *testing.T) {
	clearEnv(t)
	te := startTestEnvironment(t, config)

	first := te.suite(config)
	require.NoError(t, first.Initialize())
	require.NoError(t, sendActivationMail(first, 1))
	require.NoError(t, first.RecordTestUser())

	t.Setenv(testcontext.EnvEmail, "last")
	second := te.suite(config)
	require.NoError(t, second.Initialize())
	assert.Equal(t, first.User(), second.User())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	content, found, err := second.MailService().WaitForMessage(ctx, second.User().Email, "shop.test", "ACTIVATE")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, content, "your activation code is 1")
}

// A run on an environment nobody recorded a user for can't start.
func TestReuseRecordedUserOfAnotherEnvironment(t *testing.T) {
	clearEnv(t)
	te := startTestEnvironment(t, config)

	first := te.suite(config)
	require.NoError(t, first.Initialize())
	require.NoError(t, first.RecordTestUser())

	t.Setenv(testcontext.EnvEmail, first.User().Email)
	t.Setenv(testcontext.EnvTargetEnv, "prod")
	err := te.suite(config).Initialize()
	assert.ErrorIs(t, err, testcontext.ErrConfiguration)
}
