package commandmanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/steelcutops/firstboot/common"
	"golang.org/x/crypto/ssh"
)

const defaultDialTimeout = 30 * time.Second

var (
	ErrSudoIncorrectPassword = errors.New("sudo: incorrect password provided")
	ErrSudoNotInSudoers      = errors.New("sudo: user is not in the sudoers file")
)

type SSHDialer interface {
	Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error)
}

// DefaultSSHDialer dials with golang.org/x/crypto/ssh directly.
type DefaultSSHDialer struct{}

func (DefaultSSHDialer) Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	cfg := *config
	cfg.Timeout = timeout
	return ssh.Dial(network, addr, &cfg)
}

type UnixCommandManager struct {
	Hostname  string
	SSHClient SSHDialer
	Logger    logrus.FieldLogger
	common.Credentials

	// geteuid is swapped in tests.
	geteuid func() int
}

func (u *UnixCommandManager) log() logrus.FieldLogger {
	if u.Logger == nil {
		return logrus.StandardLogger().WithField("host", u.Hostname)
	}
	return u.Logger
}

// argv flattens a config into the argument vector that is actually executed.
// Environment assignments go through env(1) so they survive sudo.
func (u *UnixCommandManager) argv(config CommandConfig, sudo bool) []string {
	argv := append([]string{config.Command}, config.Args...)
	if len(config.Env) > 0 {
		argv = append(append([]string{"env"}, config.Env...), argv...)
	}
	if sudo {
		argv = append([]string{"sudo", "-S"}, argv...)
	}
	return argv
}

func (u *UnixCommandManager) needsSudo(config CommandConfig) bool {
	if !config.Sudo {
		return false
	}
	if u.isLocal() {
		euid := os.Geteuid
		if u.geteuid != nil {
			euid = u.geteuid
		}
		// Already root, sudo would only add a password prompt.
		return euid() != 0
	}
	return true
}

func (u *UnixCommandManager) RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error) {
	sudo := u.needsSudo(config)
	argv := u.argv(config, sudo)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if sudo {
		cmd.Stdin = strings.NewReader(u.SudoPassword + "\n")
	}
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	u.log().WithField("command", strings.Join(argv, " ")).Debug("Executing local command")

	start := time.Now()
	err := cmd.Run()

	result := CommandResult{
		Command:   config.String(),
		STDOUT:    stdout.String(),
		STDERR:    stderr.String(),
		ExitCode:  getExitCode(err),
		Duration:  time.Since(start),
		Timestamp: start,
	}

	return result, classifyResult(result, err)
}

func (u *UnixCommandManager) getSSHConfig() (*ssh.ClientConfig, error) {
	var authMethod ssh.AuthMethod

	if u.Password != "" {
		u.log().Debug("Using password authentication")
		authMethod = ssh.Password(u.Password)
	} else {
		u.log().Debug("Using public key authentication")
		var keyManager SSHKeyManager
		if u.KeyPassphrase != "" {
			keyManager = FileSSHKeyManager{}
		} else {
			keyManager = AgentSSHKeyManager{}
		}

		keys, err := keyManager.ReadPrivateKeys(u.KeyPassphrase)
		if err != nil {
			return nil, err
		}

		authMethod = ssh.PublicKeys(keys...)
	}

	return &ssh.ClientConfig{
		User:            u.User,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}, nil
}

func (u *UnixCommandManager) RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if u.SSHClient == nil {
		return CommandResult{}, errors.New("SSHClient is not initialized")
	}

	sshConfig, err := u.getSSHConfig()
	if err != nil {
		return CommandResult{}, err
	}

	dialTimeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		dialTimeout = time.Until(deadline)
	}

	client, err := u.SSHClient.Dial("tcp", u.Hostname+":22", sshConfig, dialTimeout)
	if err != nil {
		return CommandResult{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return CommandResult{}, err
	}
	defer session.Close()

	sudo := u.needsSudo(config)
	cmdStr := shellJoin(u.argv(config, sudo))
	if sudo {
		session.Stdin = strings.NewReader(u.SudoPassword + "\n")
	}

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	u.log().WithField("command", cmdStr).Debug("Executing remote command")

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmdStr)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		u.log().WithField("command", cmdStr).Error("Remote command cancelled")
		return CommandResult{Command: config.String(), Timestamp: start}, ctx.Err()
	}

	result := CommandResult{
		Command:   config.String(),
		STDOUT:    stdout.String(),
		STDERR:    stderr.String(),
		ExitCode:  getExitCode(err),
		Duration:  time.Since(start),
		Timestamp: start,
	}

	return result, classifyResult(result, err)
}

func (u *UnixCommandManager) Run(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if u.isLocal() {
		return u.RunLocal(ctx, config)
	}
	return u.RunRemote(ctx, config)
}

func (u *UnixCommandManager) isLocal() bool {
	return u.Hostname == "" || u.Hostname == "localhost" || u.Hostname == "127.0.0.1"
}

// classifyResult turns a finished command into the error callers see.
func classifyResult(result CommandResult, err error) error {
	output := result.STDOUT + result.STDERR
	if strings.Contains(output, "incorrect password") {
		return ErrSudoIncorrectPassword
	}
	if strings.Contains(output, "is not in the sudoers file") {
		return ErrSudoNotInSudoers
	}

	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	var sshExitErr *ssh.ExitError
	if errors.As(err, &exitErr) || errors.As(err, &sshExitErr) {
		return &CommandError{Result: result}
	}

	return fmt.Errorf("running %q: %w", result.Command, err)
}

func getExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	var sshExitErr *ssh.ExitError
	if errors.As(err, &sshExitErr) {
		return sshExitErr.ExitStatus()
	}
	return -1
}

// shellJoin quotes each argument for a POSIX shell on the remote side.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
