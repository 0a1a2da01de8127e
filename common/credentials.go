package common

// Credentials holds the authentication material used to reach a host and to
// escalate privileges on it.
type Credentials struct {
	User          string
	Password      string
	KeyPassphrase string
	SudoPassword  string
}
