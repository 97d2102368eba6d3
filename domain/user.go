package domain

type UserID int64

// User is the identity attached to a connection. The full account record
// (password hash, created date) belongs to the user repository; the core
// only ever sees this reference.
type User struct {
	ID       UserID
	Username string
}
