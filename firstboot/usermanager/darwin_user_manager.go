package usermanager

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

// DarwinUserManager reads accounts from Directory Services.
type DarwinUserManager struct {
	CommandManager cm.CommandManager
}

func (d *DarwinUserManager) FirstRegularUID() int { return 501 }

func (d *DarwinUserManager) GetUser(ctx context.Context, username string) (User, error) {
	output, err := d.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "dscl",
		Args:    []string{".", "-read", "/Users/" + username, "UniqueID", "PrimaryGroupID", "NFSHomeDirectory", "UserShell", "RealName"},
	})
	if err != nil {
		return User{}, fmt.Errorf("looking up user %s: %w", username, err)
	}

	user := User{Username: username}
	lines := strings.Split(output.STDOUT, "\n")
	for i, line := range lines {
		key, value, _ := strings.Cut(line, ":")
		value = strings.TrimSpace(value)
		// RealName may be wrapped onto the following line.
		if value == "" && i+1 < len(lines) && strings.HasPrefix(lines[i+1], " ") {
			value = strings.TrimSpace(lines[i+1])
		}
		switch key {
		case "UniqueID":
			user.UID, _ = strconv.Atoi(value)
		case "PrimaryGroupID":
			user.GID, _ = strconv.Atoi(value)
		case "NFSHomeDirectory":
			user.HomeDir = value
		case "UserShell":
			user.Shell = value
		case "RealName":
			user.Comment = value
		}
	}

	if user.HomeDir == "" {
		return User{}, fmt.Errorf("no home directory recorded for %s", username)
	}
	return user, nil
}

// ListUsers returns accounts ordered by UID. Only name and UID are filled in.
func (d *DarwinUserManager) ListUsers(ctx context.Context) ([]User, error) {
	output, err := d.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "dscl",
		Args:    []string{".", "-list", "/Users", "UniqueID"},
	})
	if err != nil {
		return nil, err
	}

	var users []User
	for _, line := range strings.Split(output.STDOUT, "\n") {
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		uid, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		users = append(users, User{Username: parts[0], UID: uid})
	}

	sort.Slice(users, func(i, j int) bool { return users[i].UID < users[j].UID })
	return users, nil
}
