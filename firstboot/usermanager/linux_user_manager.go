package usermanager

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

type LinuxUserManager struct {
	CommandManager cm.CommandManager
}

func (l *LinuxUserManager) FirstRegularUID() int { return 1000 }

func (l *LinuxUserManager) GetUser(ctx context.Context, username string) (User, error) {
	output, err := l.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "getent",
		Args:    []string{"passwd", username},
	})
	if err != nil {
		return User{}, fmt.Errorf("looking up user %s: %w", username, err)
	}

	user, ok := parsePasswdLine(strings.TrimSpace(output.STDOUT))
	if !ok {
		return User{}, fmt.Errorf("unexpected passwd entry for %s: %q", username, output.STDOUT)
	}
	return user, nil
}

func (l *LinuxUserManager) ListUsers(ctx context.Context) ([]User, error) {
	output, err := l.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "getent",
		Args:    []string{"passwd"},
	})
	if err != nil {
		return nil, err
	}

	var users []User
	for _, line := range strings.Split(output.STDOUT, "\n") {
		if user, ok := parsePasswdLine(line); ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func parsePasswdLine(line string) (User, bool) {
	parts := strings.Split(line, ":")
	if len(parts) < 7 {
		return User{}, false
	}

	uid, err := strconv.Atoi(parts[2])
	if err != nil {
		return User{}, false
	}
	gid, err := strconv.Atoi(parts[3])
	if err != nil {
		return User{}, false
	}

	return User{
		Username: parts[0],
		UID:      uid,
		GID:      gid,
		Comment:  parts[4],
		HomeDir:  parts[5],
		Shell:    parts[6],
	}, true
}
