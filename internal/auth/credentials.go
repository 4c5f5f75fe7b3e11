package auth

import "crypto/subtle"

// Credentials is the single configured operator account.
type Credentials struct {
	Email    string
	Password string
}

// Match compares in constant time. An unconfigured account never matches.
func (c Credentials) Match(email, password string) bool {
	if c.Email == "" || c.Password == "" {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(c.Email), []byte(email)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) == 1
	return emailOK && passwordOK
}
