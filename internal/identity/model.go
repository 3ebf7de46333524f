package identity

// Registration is the data needed to open an account. Email is the
// account's identity key.
type Registration struct {
	Email    string
	Name     string
	Password string
}
