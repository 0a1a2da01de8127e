// Package provisioner runs the first-boot sequence against one host: wait for
// the network, reconcile packages, install assets and print a summary.
package provisioner

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/steelcutops/firstboot/config"
	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
	"github.com/steelcutops/firstboot/firstboot/environmentmanager"
	"github.com/steelcutops/firstboot/firstboot/filemanager"
	"github.com/steelcutops/firstboot/firstboot/host"
	"github.com/steelcutops/firstboot/firstboot/hostmanager"
	"github.com/steelcutops/firstboot/firstboot/networkmanager"
	"github.com/steelcutops/firstboot/firstboot/output"
	"github.com/steelcutops/firstboot/firstboot/packagemanager"
	"github.com/steelcutops/firstboot/firstboot/reconciler"
	"github.com/steelcutops/firstboot/firstboot/servicemanager"
	"github.com/steelcutops/firstboot/firstboot/statemanager"
	"github.com/steelcutops/firstboot/firstboot/usermanager"
)

// FontDir is where fonts land, relative to the user's home.
const FontDir = ".local/share/fonts"

// Report is what a single run did.
type Report struct {
	Hostname string
	// Offline is set when the probe failed and nothing else ran.
	Offline  bool
	Result   reconciler.Result
	AssetErr error
	Duration time.Duration
	RunID    string
}

type Provisioner struct {
	Hostname string
	Profile  config.Profile

	Prober         networkmanager.Prober
	PackageManager packagemanager.PackageManager
	CommandManager cm.CommandManager
	FileManager    filemanager.FileManager
	UserManager    usermanager.UserManager
	ServiceManager servicemanager.ServiceManager
	HostManager    hostmanager.HostManager
	// EnvironmentManager may be nil when the profile sets no environment.
	EnvironmentManager environmentmanager.EnvironmentManager

	// Journal is optional.
	Journal statemanager.StateManager
	Printer *output.Printer
	Logger  logrus.FieldLogger
}

// New wires a Provisioner to the managers of h. Remote hosts and profiles
// asking for icmp are probed with ping from the host itself; everything
// else is probed over HTTP from here.
func New(h *host.Host, profile config.Profile, printer *output.Printer, journal statemanager.StateManager) *Provisioner {
	var prober networkmanager.Prober = networkmanager.NewHTTPProber(h.Logger)
	if profile.Probe.Method == config.ProbeICMP || !h.IsLocal() {
		prober = h.NetworkManager
	}

	return &Provisioner{
		Hostname:           h.Hostname,
		Profile:            profile,
		Prober:             prober,
		PackageManager:     h.PackageManager,
		CommandManager:     h.CommandManager,
		FileManager:        h.FileManager,
		UserManager:        h.UserManager,
		ServiceManager:     h.ServiceManager,
		HostManager:        h.HostManager,
		EnvironmentManager: h.EnvironmentManager,
		Journal:            journal,
		Printer:            printer,
		Logger:             h.Logger,
	}
}

func (p *Provisioner) log() logrus.FieldLogger {
	if p.Logger == nil {
		return logrus.StandardLogger().WithField("host", p.Hostname)
	}
	return p.Logger
}

// Run provisions the host once. An unreachable network is not an error: the
// run is recorded as offline and Run returns a nil error.
func (p *Provisioner) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	log := p.log()
	report := Report{Hostname: p.Hostname}
	if p.Printer == nil {
		p.Printer = output.NewPrinter(io.Discard)
	}

	p.logHostInfo(ctx)

	probe := p.Profile.Probe
	if !p.Prober.Probe(ctx, probe.Target, probe.Attempts, probe.Timeout.Duration) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log.WithField("target", probe.Target).Warn("Network unreachable, skipping provisioning")
		p.Printer.Offline(probe.Target)
		report.Offline = true
		report.Duration = time.Since(start)
		report.RunID = p.record(ctx, start, report, statemanager.OutcomeOffline, nil)
		return report, nil
	}

	rec := reconciler.New(p.PackageManager, p.Printer, log)
	result, err := rec.Reconcile(ctx, p.Profile.Packages)
	report.Result = result
	if err != nil {
		report.Duration = time.Since(start)
		p.Printer.Failed(p.Hostname, err)
		report.RunID = p.record(ctx, start, report, statemanager.OutcomeFailed, err)
		return report, err
	}

	report.AssetErr = p.installAssets(ctx)
	report.Duration = time.Since(start)
	if report.AssetErr != nil {
		err := fmt.Errorf("installing assets: %w", report.AssetErr)
		p.Printer.Failed(p.Hostname, err)
		report.RunID = p.record(ctx, start, report, statemanager.OutcomeFailed, err)
		return report, err
	}

	installed := 0
	if result.Installed {
		installed = len(result.Missing)
	}
	p.Printer.Summary(p.Hostname, installed, len(result.Present), report.Duration)

	outcome := statemanager.OutcomeNoop
	if installed > 0 {
		outcome = statemanager.OutcomeInstalled
	}
	report.RunID = p.record(ctx, start, report, outcome, nil)
	log.WithFields(logrus.Fields{
		"installed": installed,
		"present":   len(result.Present),
		"duration":  report.Duration.Round(time.Millisecond),
	}).Info("Provisioning finished")
	return report, nil
}

func (p *Provisioner) logHostInfo(ctx context.Context) {
	if p.HostManager == nil {
		return
	}
	info, err := p.HostManager.Info(ctx)
	if err != nil {
		p.log().WithError(err).Debug("Could not gather host info")
		return
	}
	p.log().WithFields(logrus.Fields{
		"kernel": info.Kernel + " " + info.KernelVersion,
		"cores":  info.NumberOfCores,
		"memory": humanize.IBytes(info.TotalMemory),
	}).Debug("Host info")
}

// record journals the run. A journal failure is logged and swallowed.
func (p *Provisioner) record(ctx context.Context, start time.Time, report Report, outcome statemanager.Outcome, runErr error) string {
	if p.Journal == nil {
		return ""
	}

	run := statemanager.Run{
		Hostname:  p.Hostname,
		Profile:   p.Profile.Name,
		StartedAt: start,
		Duration:  report.Duration,
		Outcome:   outcome,
		Missing:   report.Result.Missing,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// The run may have been cancelled; the record should still land.
	id, err := p.Journal.Save(context.WithoutCancel(ctx), run)
	if err != nil {
		p.log().WithError(err).Warn("Failed to record provisioning run")
		return ""
	}
	return id
}

// installAssets attempts every dotfile, font and service and returns all
// failures together.
func (p *Provisioner) installAssets(ctx context.Context) error {
	var errs *multierror.Error

	if len(p.Profile.Dotfiles) > 0 || len(p.Profile.Fonts) > 0 {
		user, err := p.targetUser(ctx)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("resolving target user: %w", err))
		} else {
			for _, asset := range p.Profile.Dotfiles {
				if err := p.installDotfile(ctx, user, asset); err != nil {
					errs = multierror.Append(errs, fmt.Errorf("dotfile %s: %w", asset.Source, err))
				}
			}
			if err := p.installFonts(ctx, user); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	if err := p.applyEnvironment(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}

	for _, svc := range p.Profile.Services {
		if err := servicemanager.Ensure(ctx, p.ServiceManager, svc); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("service %s: %w", svc, err))
			continue
		}
		p.log().WithField("service", svc).Info("Service enabled")
	}

	return errs.ErrorOrNil()
}

func (p *Provisioner) applyEnvironment(ctx context.Context) error {
	if len(p.Profile.Environment) == 0 {
		return nil
	}
	if p.EnvironmentManager == nil {
		return fmt.Errorf("environment: not supported on this host")
	}

	keys := make([]string, 0, len(p.Profile.Environment))
	for k := range p.Profile.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs *multierror.Error
	for _, k := range keys {
		if err := p.EnvironmentManager.Set(ctx, k, p.Profile.Environment[k]); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("environment %s: %w", k, err))
		}
	}
	return errs.ErrorOrNil()
}

func (p *Provisioner) targetUser(ctx context.Context) (usermanager.User, error) {
	if p.Profile.User != "" {
		return p.UserManager.GetUser(ctx, p.Profile.User)
	}
	return usermanager.DefaultUser(ctx, p.UserManager)
}

func (p *Provisioner) installDotfile(ctx context.Context, user usermanager.User, asset config.Asset) error {
	target := path.Clean(asset.TargetName())
	dest := path.Join(user.HomeDir, target)

	if err := p.copyAsset(ctx, asset.Source, dest); err != nil {
		return err
	}

	mode, err := asset.FileMode()
	if err != nil {
		return err
	}
	if mode != 0 {
		if err := p.FileManager.Chmod(ctx, dest, mode); err != nil {
			return err
		}
	}

	// Directories created on the way down belong to root until handed over.
	top := path.Join(user.HomeDir, strings.SplitN(target, "/", 2)[0])
	if err := p.FileManager.Chown(ctx, top, user.Owner()); err != nil {
		return err
	}

	p.log().WithField("dotfile", dest).Debug("Dotfile installed")
	return nil
}

func (p *Provisioner) installFonts(ctx context.Context, user usermanager.User) error {
	if len(p.Profile.Fonts) == 0 {
		return nil
	}

	var errs *multierror.Error
	fontDir := path.Join(user.HomeDir, FontDir)
	copied := 0
	for _, asset := range p.Profile.Fonts {
		dest := path.Join(fontDir, path.Clean(asset.TargetName()))
		if err := p.copyAsset(ctx, asset.Source, dest); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("font %s: %w", asset.Source, err))
			continue
		}
		copied++
	}
	if copied == 0 {
		return errs.ErrorOrNil()
	}

	// ~/.local may not have existed before.
	if err := p.FileManager.Chown(ctx, path.Join(user.HomeDir, ".local"), user.Owner()); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("fonts: %w", err))
	}

	if _, err := p.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "fc-cache",
		Args:    []string{"-f", fontDir},
	}); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("refreshing font cache: %w", err))
	}
	p.log().WithField("fonts", copied).Debug("Fonts installed")

	return errs.ErrorOrNil()
}

// copyAsset copies a file or a whole directory to dest, creating parents.
func (p *Provisioner) copyAsset(ctx context.Context, source, dest string) error {
	attrs, err := p.FileManager.GetFileAttributes(ctx, source)
	if err != nil {
		return err
	}

	if attrs.IsDir {
		if err := p.FileManager.CreateDirectory(ctx, dest); err != nil {
			return err
		}
		return p.FileManager.CopyDirectory(ctx, source, dest)
	}

	if err := p.FileManager.CreateDirectory(ctx, path.Dir(dest)); err != nil {
		return err
	}
	return p.FileManager.CopyFile(ctx, source, dest)
}
