// File: internal/results/results.go
package results

// Cookies holds the captured session cookie.
type Cookies struct {
	Session string `json:"session"`
}

// Result is one output record. Records are appended in input order and never
// mutated after construction.
type Result struct {
	Name     string  `json:"name"`
	Provider string  `json:"provider"`
	APIUser  string  `json:"api_user"`
	Cookies  Cookies `json:"cookies"`
}

// New builds a record from completed extraction output.
func New(name, provider, apiUser, sessionCookie string) Result {
	return Result{
		Name:     name,
		Provider: provider,
		APIUser:  apiUser,
		Cookies:  Cookies{Session: sessionCookie},
	}
}

// Failed is the degraded record for an account whose login did not complete.
func Failed(name, provider string) Result {
	return New(name, provider, "", "")
}
