package usermanager

import (
	"context"
	"errors"
	"strconv"
)

// ErrNoLoginUser is returned when no regular account exists on the host.
var ErrNoLoginUser = errors.New("no regular login user found")

const nobodyUID = 65534

// User represents an individual user account on the system.
type User struct {
	Username string // user login name
	UID      int    // user ID
	GID      int    // group ID
	Comment  string // user full name or comment
	HomeDir  string // user home directory
	Shell    string // user's shell
}

// Owner renders the user as a chown(1) owner spec.
func (u User) Owner() string {
	return u.Username + ":" + strconv.Itoa(u.GID)
}

// UserManager encompasses read operations on user accounts.
type UserManager interface {
	// Fetches the details of a user based on username
	GetUser(ctx context.Context, username string) (User, error)

	// Lists all users
	ListUsers(ctx context.Context) ([]User, error)

	// Lowest UID the platform hands out to human accounts
	FirstRegularUID() int
}

// DefaultUser picks the first regular account, which on a freshly created
// machine is the user the image was built for.
func DefaultUser(ctx context.Context, um UserManager) (User, error) {
	users, err := um.ListUsers(ctx)
	if err != nil {
		return User{}, err
	}

	for _, u := range users {
		if u.UID < um.FirstRegularUID() || u.UID == nobodyUID {
			continue
		}
		if u.HomeDir == "" {
			return um.GetUser(ctx, u.Username)
		}
		return u, nil
	}
	return User{}, ErrNoLoginUser
}
