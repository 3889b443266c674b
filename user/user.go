// Package user describes the randomly generated test user of a run and the
// record kept of it once the run succeeded.
package user

// Gender is the civility of a generated user.
type Gender string

const (
	Madame   Gender = "Madame"
	Monsieur Gender = "Monsieur"
)

// TestUser is a randomly generated user.
type TestUser struct {
	Gender    Gender `json:"gender"`
	Lastname  string `json:"lastname"`
	Firstname string `json:"firstname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Map returns u as a JSON-shaped map so it can be merged with dataset
// content.
func (u TestUser) Map() map[string]any {
	return map[string]any{
		"gender":    string(u.Gender),
		"lastname":  u.Lastname,
		"firstname": u.Firstname,
		"email":     u.Email,
		"password":  u.Password,
	}
}

// RecordedTestUser is a TestUser persisted after a run so that later runs can
// reuse it.
type RecordedTestUser struct {
	Environment string `json:"environment"`
	Dataset     string `json:"dataset"`
	Date        string `json:"date"`
	TestUser
}

// DateLayout formats RecordedTestUser.Date.
const DateLayout = "02/01/2006 15:04:05"
