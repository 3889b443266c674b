package user

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrNoDomain is returned when the mail provider exposes no domain to build
// an address with.
var ErrNoDomain = errors.New("the mail provider exposes no email domain")

// Generator creates random users. The zero value is not usable; create one
// with NewGenerator.
type Generator struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewGenerator returns a Generator. A seed of 0 picks a random seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		faker: gofakeit.New(seed),
		now:   time.Now,
	}
}

// Generate returns a random user whose email uses one of domains. password
// is copied as-is.
func (g *Generator) Generate(domains []string, password string) (TestUser, error) {
	if len(domains) == 0 {
		return TestUser{}, ErrNoDomain
	}

	gender := Madame
	firstnames := femaleFirstnames
	if g.faker.Bool() {
		gender = Monsieur
		firstnames = maleFirstnames
	}
	lastname := strings.ToUpper(g.faker.RandomString(lastnames))
	firstname := g.faker.RandomString(firstnames)
	domain := g.faker.RandomString(domains)
	suffix := g.now().Nanosecond() / int(time.Millisecond)

	local := fmt.Sprintf("%s%s-%d", firstInitial(firstname), lastname, suffix)

	return TestUser{
		Gender:    gender,
		Lastname:  lastname,
		Firstname: firstname,
		Email:     NormalizeEmail(local + "@" + domain),
		Password:  password,
	}, nil
}

func firstInitial(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// NormalizeEmail strips diacritics and spaces from s and lower-cases it.
func NormalizeEmail(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.ToLower(strings.ReplaceAll(stripped, " ", ""))
}
