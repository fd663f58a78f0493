package models

// User is a registered account. PasswordHash is a bcrypt digest; the clear
// password never touches storage.
type User struct {
	ID           string
	Login        string
	PasswordHash []byte
}
