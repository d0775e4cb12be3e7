// Package users serves the in-memory user directory backing the
// dashboard login dropdown. There is no persistence; the directory is
// seeded at construction time.
package users

// User is a dashboard user record.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Directory is a read-only lookup of users by short name.
type Directory struct {
	users map[string]User
}

// NewDirectory creates the default seeded user directory.
func NewDirectory() *Directory {
	return &Directory{
		users: map[string]User{
			"admin": {Name: "Admin", Email: "admin@gmail.com", Role: "admin"},
			"joel":  {Name: "Joel", Email: "joel@gmail.com", Role: "user"},
		},
	}
}

// Lookup returns the user registered under key, if any.
func (d *Directory) Lookup(key string) (User, bool) {
	u, ok := d.users[key]
	return u, ok
}
