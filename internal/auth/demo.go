package auth

import (
	"crypto/subtle"
	"strings"
)

// DemoSubject is the fixed identity of demo sessions.
const DemoSubject = "demo_id"

// DemoPolicy is the single place that knows the demo credential pair and
// whether demo logins are allowed at all.
type DemoPolicy struct {
	enabled  bool
	email    string
	password string
}

func NewDemoPolicy(enabled bool, email, password string) *DemoPolicy {
	return &DemoPolicy{
		enabled:  enabled && email != "" && password != "",
		email:    strings.ToLower(strings.TrimSpace(email)),
		password: password,
	}
}

func (d *DemoPolicy) Enabled() bool {
	return d != nil && d.enabled
}

func (d *DemoPolicy) Email() string {
	if d == nil {
		return ""
	}
	return d.email
}

// Match reports whether the pair is the demo credential.
func (d *DemoPolicy) Match(email, password string) bool {
	if !d.Enabled() {
		return false
	}
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(d.email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(d.password)) == 1
	return emailOK && passOK
}
