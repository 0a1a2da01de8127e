// Package reconciler closes the gap between a desired package set and what
// the package database reports as installed.
//
// A run classifies every desired name, installs the missing subset in a
// single batch and then removes orphans and clears the package cache. When
// nothing is missing the installer is never touched, so repeated runs
// against an unchanged system are free of side effects.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/steelcutops/firstboot/firstboot/packagemanager"
)

var (
	ErrRefreshIndex = errors.New("refreshing package index failed")
	ErrInstallBatch = errors.New("installing missing packages failed")
)

// PackageStatus is the classification of a single desired package.
type PackageStatus struct {
	Name             string
	Known            bool
	InstalledVersion string
}

// Installed is true only for a known package with a recorded version.
func (s PackageStatus) Installed() bool {
	return s.Known && s.InstalledVersion != ""
}

// Reporter receives the user-visible lines of a run.
type Reporter interface {
	NotInstalled(name string)
	Installed(name, version string)
	UpToDate()
	Installing(names []string)
}

// Result describes one reconciliation run.
type Result struct {
	// Missing is the subset of the desired set that needed installing, in
	// desired order and without duplicates.
	Missing []string
	Present []PackageStatus
	// Installed is true once the batch install returned successfully.
	Installed bool
	// CleanupErr collects autoremove and cache clean failures. It never
	// fails the run.
	CleanupErr error
	Duration   time.Duration
}

type Reconciler struct {
	Querier   packagemanager.Querier
	Installer packagemanager.Installer
	Reporter  Reporter
	Logger    logrus.FieldLogger
}

// New builds a Reconciler that queries and installs through pm.
func New(pm packagemanager.PackageManager, reporter Reporter, logger logrus.FieldLogger) *Reconciler {
	return &Reconciler{
		Querier:   pm,
		Installer: pm,
		Reporter:  reporter,
		Logger:    logger,
	}
}

func (r *Reconciler) log() logrus.FieldLogger {
	if r.Logger == nil {
		return logrus.StandardLogger()
	}
	return r.Logger
}

func (r *Reconciler) reporter() Reporter {
	if r.Reporter == nil {
		return discard{}
	}
	return r.Reporter
}

// Classify asks the package database about name. A package that cannot be
// queried is reported as not installed so that it gets another install
// attempt instead of being skipped silently.
func (r *Reconciler) Classify(ctx context.Context, name string) PackageStatus {
	record, err := r.Querier.Query(ctx, name)
	if err != nil {
		r.log().WithField("package", name).WithError(err).Warn("Package query failed, treating as not installed")
		return PackageStatus{Name: name}
	}

	switch {
	case !record.Known:
		return PackageStatus{Name: name}
	case record.InstalledPolicy == packagemanager.PolicyNone, record.InstalledPolicy == "":
		return PackageStatus{Name: name, Known: true}
	default:
		return PackageStatus{Name: name, Known: true, InstalledVersion: record.InstalledPolicy}
	}
}

// Plan classifies every desired package and reports it, without installing
// anything. It returns the missing subset.
func (r *Reconciler) Plan(ctx context.Context, desired []string) []string {
	missing, _ := r.plan(ctx, desired)
	return missing
}

func (r *Reconciler) plan(ctx context.Context, desired []string) ([]string, []PackageStatus) {
	var missing []string
	var present []PackageStatus
	queued := make(map[string]bool)

	for _, name := range desired {
		status := r.Classify(ctx, name)
		if status.Installed() {
			r.reporter().Installed(name, status.InstalledVersion)
			present = append(present, status)
			continue
		}

		r.reporter().NotInstalled(name)
		if !queued[name] {
			queued[name] = true
			missing = append(missing, name)
		}
	}

	return missing, present
}

// Reconcile installs every package of desired that is not installed yet.
//
// Refresh and install failures are returned wrapped in ErrRefreshIndex and
// ErrInstallBatch. After a failed install no cleanup is attempted. Cleanup
// failures are logged and kept in Result.CleanupErr.
func (r *Reconciler) Reconcile(ctx context.Context, desired []string) (Result, error) {
	start := time.Now()
	var result Result

	result.Missing, result.Present = r.plan(ctx, desired)
	if err := ctx.Err(); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	if len(result.Missing) == 0 {
		r.reporter().UpToDate()
		r.log().WithField("packages", len(desired)).Info("All desired packages are installed")
		result.Duration = time.Since(start)
		return result, nil
	}

	log := r.log().WithField("missing", strings.Join(result.Missing, " "))
	r.reporter().Installing(result.Missing)

	if err := r.Installer.RefreshIndex(ctx); err != nil {
		result.Duration = time.Since(start)
		log.WithError(err).Error("Refreshing package index failed")
		return result, fmt.Errorf("%w: %w", ErrRefreshIndex, err)
	}

	log.Info("Installing missing packages")
	if err := r.Installer.InstallBatch(ctx, result.Missing); err != nil {
		result.Duration = time.Since(start)
		log.WithError(err).Error("Batch install failed")
		return result, fmt.Errorf("%w: %w", ErrInstallBatch, err)
	}
	result.Installed = true

	result.CleanupErr = r.cleanup(ctx)
	if result.CleanupErr != nil {
		log.WithError(result.CleanupErr).Warn("Package cleanup failed")
	}

	result.Duration = time.Since(start)
	return result, nil
}

// cleanup runs both cleanup steps even when the first one fails.
func (r *Reconciler) cleanup(ctx context.Context) error {
	var errs *multierror.Error
	if err := r.Installer.Autoremove(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("autoremove: %w", err))
	}
	if err := r.Installer.CleanCache(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("clean cache: %w", err))
	}
	return errs.ErrorOrNil()
}

type discard struct{}

func (discard) NotInstalled(string)      {}
func (discard) Installed(string, string) {}
func (discard) UpToDate()                {}
func (discard) Installing([]string)      {}
