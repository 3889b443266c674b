package user

import (
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "éLODIE@maildrop.cc", expected: "elodie@maildrop.cc"},
		{input: "JDE LA TOUR-12@yopmail.com", expected: "jdelatour-12@yopmail.com"},
		{input: "Çà ñ ü@grr.la", expected: "canu@grr.la"},
		{input: "plain@example.com", expected: "plain@example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeEmail(tc.input))
		})
	}
}

func TestGenerate(t *testing.T) {
	domains := []string{"sharklasers.com", "grr.la", "spam4.me"}
	localRe := regexp.MustCompile(`^[a-z]+-\d{1,3}$`)

	g := NewGenerator(42)
	for i := 0; i < 200; i++ {
		u, err := g.Generate(domains, "s3cret")
		require.NoError(t, err)

		assert.Contains(t, []Gender{Madame, Monsieur}, u.Gender)
		assert.Equal(t, "s3cret", u.Password)

		local, domain, ok := cutEmail(u.Email)
		require.True(t, ok, "email %q has no @", u.Email)
		assert.Truef(t, slices.Contains(domains, domain), "domain %q not offered by the provider", domain)
		assert.Regexpf(t, localRe, local, "local part %q should be lower-case without spaces or diacritics", local)

		if u.Gender == Madame {
			assert.Contains(t, femaleFirstnames, u.Firstname)
		} else {
			assert.Contains(t, maleFirstnames, u.Firstname)
		}
		assert.Contains(t, upper(lastnames), u.Lastname)
	}
}

func TestGenerateUsesMillisecondSuffix(t *testing.T) {
	g := NewGenerator(7)
	g.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 123*int(time.Millisecond), time.UTC) }

	u, err := g.Generate([]string{"maildrop.cc"}, "pw")
	require.NoError(t, err)
	assert.Regexp(t, `-123@maildrop\.cc$`, u.Email)
}

func TestGenerateWithoutDomains(t *testing.T) {
	_, err := NewGenerator(1).Generate(nil, "pw")
	assert.ErrorIs(t, err, ErrNoDomain)
}

func cutEmail(email string) (string, string, bool) {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return "", "", false
	}
	return email[:i], email[i+1:], true
}

func upper(s []string) []string {
	r := make([]string, len(s))
	for i := range s {
		r[i] = strings.ToUpper(s[i])
	}
	return r
}
