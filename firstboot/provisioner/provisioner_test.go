package provisioner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/steelcutops/firstboot/config"
	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
	"github.com/steelcutops/firstboot/firstboot/environmentmanager"
	"github.com/steelcutops/firstboot/firstboot/filemanager"
	"github.com/steelcutops/firstboot/firstboot/output"
	"github.com/steelcutops/firstboot/firstboot/packagemanager"
	"github.com/steelcutops/firstboot/firstboot/reconciler"
	"github.com/steelcutops/firstboot/firstboot/servicemanager"
	"github.com/steelcutops/firstboot/firstboot/statemanager"
	"github.com/steelcutops/firstboot/firstboot/usermanager"
)

type stubProber struct {
	reachable bool
	calls     int
}

func (s *stubProber) Probe(ctx context.Context, target string, attempts int, timeout time.Duration) bool {
	s.calls++
	return s.reachable
}

type MockPackageManager struct {
	mock.Mock
}

func (m *MockPackageManager) Name() string { return "mock" }

func (m *MockPackageManager) Query(ctx context.Context, name string) (packagemanager.PackageRecord, error) {
	args := m.Called(name)
	return args.Get(0).(packagemanager.PackageRecord), args.Error(1)
}

func (m *MockPackageManager) RefreshIndex(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *MockPackageManager) InstallBatch(ctx context.Context, names []string) error {
	return m.Called(names).Error(0)
}

func (m *MockPackageManager) Autoremove(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *MockPackageManager) CleanCache(ctx context.Context) error {
	return m.Called().Error(0)
}

// recordingCommandManager answers from Outputs and Errors keyed by the
// rendered command line and remembers every command it was asked to run.
type recordingCommandManager struct {
	mu       sync.Mutex
	Outputs  map[string]string
	Errors   map[string]error
	Commands []string
}

func (r *recordingCommandManager) RunLocal(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	return r.Run(ctx, config)
}

func (r *recordingCommandManager) RunRemote(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	return r.Run(ctx, config)
}

func (r *recordingCommandManager) Run(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := config.String()
	r.Commands = append(r.Commands, line)
	return cm.CommandResult{Command: line, STDOUT: r.Outputs[line]}, r.Errors[line]
}

type stubUserManager struct {
	users []usermanager.User
	err   error
}

func (s *stubUserManager) GetUser(ctx context.Context, username string) (usermanager.User, error) {
	if s.err != nil {
		return usermanager.User{}, s.err
	}
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return usermanager.User{}, errors.New("no such user " + username)
}

func (s *stubUserManager) ListUsers(ctx context.Context) ([]usermanager.User, error) {
	return s.users, s.err
}

func (s *stubUserManager) FirstRegularUID() int { return 1000 }

var dev = usermanager.User{Username: "dev", UID: 1000, GID: 1000, HomeDir: "/home/dev"}

type fixture struct {
	prober  *stubProber
	pm      *MockPackageManager
	cmd     *recordingCommandManager
	journal *statemanager.SQLiteStateManager
	out     *bytes.Buffer
	hook    *test.Hook
	p       *Provisioner
}

func newFixture(t *testing.T, profile config.Profile) *fixture {
	t.Helper()
	profile.ApplyDefaults()

	journal, err := statemanager.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		prober:  &stubProber{reachable: true},
		pm:      new(MockPackageManager),
		cmd:     &recordingCommandManager{Outputs: map[string]string{}, Errors: map[string]error{}},
		journal: journal,
		out:     &bytes.Buffer{},
		hook:    hook,
	}
	f.p = &Provisioner{
		Hostname:           "vm1",
		Profile:            profile,
		Prober:             f.prober,
		PackageManager:     f.pm,
		CommandManager:     f.cmd,
		FileManager:        &filemanager.UnixFileManager{CommandManager: f.cmd},
		UserManager:        &stubUserManager{users: []usermanager.User{dev}},
		ServiceManager:     &servicemanager.LinuxServiceManager{CommandManager: f.cmd},
		EnvironmentManager: &environmentmanager.UnixEnvironmentManager{CommandManager: f.cmd},
		Journal:            journal,
		Printer:            output.NewPrinter(f.out),
		Logger:             logger.WithField("host", "vm1"),
	}
	return f
}

func installed(name, version string) packagemanager.PackageRecord {
	return packagemanager.PackageRecord{Name: name, Known: true, InstalledPolicy: version}
}

func missing(name string) packagemanager.PackageRecord {
	return packagemanager.PackageRecord{Name: name, Known: true, InstalledPolicy: packagemanager.PolicyNone}
}

func TestRunOfflineSkipsEverything(t *testing.T) {
	f := newFixture(t, config.Profile{
		Name:     "workstation",
		Packages: []string{"git"},
		Services: []string{"nginx"},
	})
	f.prober.reachable = false

	report, err := f.p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Offline)
	assert.Equal(t, 1, f.prober.calls)
	assert.Empty(t, f.pm.Calls)
	assert.Empty(t, f.cmd.Commands)
	assert.Contains(t, f.out.String(), "unreachable")

	run, err := f.journal.Latest(context.Background(), "vm1")
	require.NoError(t, err)
	assert.Equal(t, statemanager.OutcomeOffline, run.Outcome)
	assert.Equal(t, report.RunID, run.ID)
	assert.Equal(t, "workstation", run.Profile)
}

func TestRunCancelledDuringProbe(t *testing.T) {
	f := newFixture(t, config.Profile{Packages: []string{"git"}})
	f.prober.reachable = false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.pm.Calls)
}

func TestRunNoop(t *testing.T) {
	f := newFixture(t, config.Profile{Packages: []string{"git", "vim"}})
	f.pm.On("Query", "git").Return(installed("git", "1:2.39.2-1.1"), nil)
	f.pm.On("Query", "vim").Return(installed("vim", "2:9.0.1378-2"), nil)

	report, err := f.p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Result.Missing)
	f.pm.AssertNotCalled(t, "RefreshIndex")
	f.pm.AssertNotCalled(t, "InstallBatch", mock.Anything)
	assert.Contains(t, f.out.String(), "Provisioned vm1")

	run, err := f.journal.Latest(context.Background(), "vm1")
	require.NoError(t, err)
	assert.Equal(t, statemanager.OutcomeNoop, run.Outcome)
}

func TestRunInstallsPackagesAndAssets(t *testing.T) {
	f := newFixture(t, config.Profile{
		Packages: []string{"git", "vim", "nginx"},
		Dotfiles: []config.Asset{{Source: "/opt/firstboot/bashrc", Target: ".bashrc", Mode: "0644"}},
		Fonts:    []config.Asset{{Source: "/opt/firstboot/fonts/FiraCode.ttf"}},
		Services: []string{"nginx"},
	})
	f.pm.On("Query", "git").Return(installed("git", "1:2.39.2-1.1"), nil)
	f.pm.On("Query", "vim").Return(missing("vim"), nil)
	f.pm.On("Query", "nginx").Return(packagemanager.PackageRecord{Name: "nginx"}, nil)
	f.pm.On("RefreshIndex").Return(nil)
	f.pm.On("InstallBatch", []string{"vim", "nginx"}).Return(nil)
	f.pm.On("Autoremove").Return(nil)
	f.pm.On("CleanCache").Return(nil)
	f.cmd.Outputs["stat -c %s %Y %F /opt/firstboot/bashrc"] = "3771 1700000000 regular file\n"
	f.cmd.Outputs["stat -c %s %Y %F /opt/firstboot/fonts/FiraCode.ttf"] = "1048576 1700000000 regular file\n"

	report, err := f.p.Run(context.Background())
	require.NoError(t, err)
	f.pm.AssertExpectations(t)
	assert.Equal(t, []string{"vim", "nginx"}, report.Result.Missing)
	assert.NoError(t, report.AssetErr)

	assert.Subset(t, f.cmd.Commands, []string{
		"cp -f /opt/firstboot/bashrc /home/dev/.bashrc",
		"chmod 644 /home/dev/.bashrc",
		"chown -R dev:1000 /home/dev/.bashrc",
		"mkdir -p /home/dev/.local/share/fonts",
		"cp -f /opt/firstboot/fonts/FiraCode.ttf /home/dev/.local/share/fonts/FiraCode.ttf",
		"chown -R dev:1000 /home/dev/.local",
		"fc-cache -f /home/dev/.local/share/fonts",
		"systemctl enable nginx",
		"systemctl start nginx",
	})
	assert.Contains(t, f.out.String(), "Provisioned vm1")
	assert.Contains(t, f.out.String(), "2 installed, 1 already present")

	run, err := f.journal.Latest(context.Background(), "vm1")
	require.NoError(t, err)
	assert.Equal(t, statemanager.OutcomeInstalled, run.Outcome)
	assert.Equal(t, []string{"vim", "nginx"}, run.Missing)
}

func TestRunInstallFailureSkipsAssets(t *testing.T) {
	f := newFixture(t, config.Profile{
		Packages: []string{"vim"},
		Services: []string{"nginx"},
	})
	f.pm.On("Query", "vim").Return(missing("vim"), nil)
	f.pm.On("RefreshIndex").Return(nil)
	f.pm.On("InstallBatch", []string{"vim"}).Return(errors.New("E: Unable to locate package vim"))

	_, err := f.p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, reconciler.ErrInstallBatch))
	f.pm.AssertNotCalled(t, "Autoremove")
	assert.Empty(t, f.cmd.Commands)
	assert.Contains(t, f.out.String(), "provisioning vm1 failed")

	run, err := f.journal.Latest(context.Background(), "vm1")
	require.NoError(t, err)
	assert.Equal(t, statemanager.OutcomeFailed, run.Outcome)
	assert.Contains(t, run.Error, "Unable to locate package")
}

func TestRunAggregatesAssetFailures(t *testing.T) {
	f := newFixture(t, config.Profile{
		Dotfiles: []config.Asset{{Source: "/opt/firstboot/bashrc"}},
		Services: []string{"nginx", "sshd"},
	})
	f.p.UserManager = &stubUserManager{err: errors.New("getent: not found")}
	f.cmd.Errors["systemctl enable nginx"] = errors.New("Unit nginx.service not found")

	report, err := f.p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving target user")
	assert.Contains(t, err.Error(), "service nginx")
	assert.NotContains(t, err.Error(), "service sshd")
	assert.Contains(t, f.cmd.Commands, "systemctl start sshd")
	assert.Error(t, report.AssetErr)
}

func TestRunPicksExplicitUser(t *testing.T) {
	admin := usermanager.User{Username: "admin", UID: 1001, GID: 1001, HomeDir: "/home/admin"}
	f := newFixture(t, config.Profile{
		User:     "admin",
		Dotfiles: []config.Asset{{Source: "/opt/firstboot/nvim", Target: ".config/nvim"}},
	})
	f.p.UserManager = &stubUserManager{users: []usermanager.User{dev, admin}}
	f.cmd.Outputs["stat -c %s %Y %F /opt/firstboot/nvim"] = "4096 1700000000 directory\n"

	_, err := f.p.Run(context.Background())
	require.NoError(t, err)
	assert.Subset(t, f.cmd.Commands, []string{
		"mkdir -p /home/admin/.config/nvim",
		"cp -R /opt/firstboot/nvim/. /home/admin/.config/nvim",
		"chown -R admin:1001 /home/admin/.config",
	})
}

func TestRunWithoutJournal(t *testing.T) {
	f := newFixture(t, config.Profile{})
	f.p.Journal = nil

	report, err := f.p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.RunID)
}

func TestRunAppliesEnvironment(t *testing.T) {
	f := newFixture(t, config.Profile{
		Environment: map[string]string{"EDITOR": "vim", "LANG": "en_US.UTF-8"},
	})
	f.cmd.Outputs["cat /etc/environment"] = "LANG=en_US.UTF-8\n"

	_, err := f.p.Run(context.Background())
	require.NoError(t, err)

	var writes []string
	for _, c := range f.cmd.Commands {
		if strings.HasPrefix(c, "sh -c") {
			writes = append(writes, c)
		}
	}
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0], `EDITOR="vim"`)
}

func TestRunEnvironmentUnsupported(t *testing.T) {
	f := newFixture(t, config.Profile{Environment: map[string]string{"EDITOR": "vim"}})
	f.p.EnvironmentManager = nil

	_, err := f.p.Run(context.Background())
	assert.ErrorContains(t, err, "environment: not supported")
}
