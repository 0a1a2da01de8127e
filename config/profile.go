package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/steelcutops/firstboot/firstboot/networkmanager"
)

// ErrInvalidProfile wraps every validation failure of a profile.
var ErrInvalidProfile = errors.New("invalid profile")

const (
	ProbeHTTP = "http"
	ProbeICMP = "icmp"
)

// Profile declares the desired end state of a freshly booted machine.
type Profile struct {
	Name     string   `toml:"name" yaml:"name"`
	User     string   `toml:"user" yaml:"user"`
	Packages []string `toml:"packages" yaml:"packages"`
	Dotfiles []Asset  `toml:"dotfiles" yaml:"dotfiles"`
	Fonts    []Asset  `toml:"fonts" yaml:"fonts"`
	Services []string `toml:"services" yaml:"services"`
	// Environment is written to the system-wide login environment.
	Environment map[string]string `toml:"environment" yaml:"environment"`
	Probe       ProbeConfig       `toml:"probe" yaml:"probe"`
}

// Asset is a file or directory copied onto the host. Target is relative to
// the user's home for dotfiles and to the font directory for fonts; it
// defaults to the base name of Source.
type Asset struct {
	Source string `toml:"source" yaml:"source"`
	Target string `toml:"target" yaml:"target"`
	Mode   string `toml:"mode" yaml:"mode"`
}

// FileMode parses Mode as octal. Zero means leave the mode alone.
func (a Asset) FileMode() (os.FileMode, error) {
	if a.Mode == "" {
		return 0, nil
	}
	m, err := strconv.ParseUint(a.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("mode %q is not octal", a.Mode)
	}
	return os.FileMode(m), nil
}

// TargetName returns Target, or the base name of Source when unset.
func (a Asset) TargetName() string {
	if a.Target != "" {
		return a.Target
	}
	return filepath.Base(a.Source)
}

type ProbeConfig struct {
	Target   string   `toml:"target" yaml:"target"`
	Attempts int      `toml:"attempts" yaml:"attempts"`
	Timeout  Duration `toml:"timeout" yaml:"timeout"`
	Method   string   `toml:"method" yaml:"method"`
}

// Duration reads "5s" style strings from both TOML and YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadProfile reads a profile, choosing the decoder from the file extension.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("profile load failed (%s): %w", path, err)
	}

	var p Profile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &p)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	default:
		return Profile{}, fmt.Errorf("profile load failed (%s): unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return Profile{}, fmt.Errorf("profile parse failed (%s): %w", path, err)
	}

	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	p.ApplyDefaults()

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// ApplyDefaults fills in the probe settings left unset.
func (p *Profile) ApplyDefaults() {
	if p.Probe.Target == "" {
		p.Probe.Target = networkmanager.DefaultProbeTarget
	}
	if p.Probe.Attempts == 0 {
		p.Probe.Attempts = networkmanager.DefaultProbeAttempts
	}
	if p.Probe.Timeout.Duration == 0 {
		p.Probe.Timeout.Duration = networkmanager.DefaultProbeTimeout
	}
	if p.Probe.Method == "" {
		p.Probe.Method = ProbeHTTP
	}
}

func (p Profile) Validate() error {
	for i, name := range p.Packages {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: packages[%d] is empty", ErrInvalidProfile, i)
		}
	}
	if err := validateAssets("dotfiles", p.Dotfiles); err != nil {
		return err
	}
	if err := validateAssets("fonts", p.Fonts); err != nil {
		return err
	}
	for i, svc := range p.Services {
		if strings.TrimSpace(svc) == "" {
			return fmt.Errorf("%w: services[%d] is empty", ErrInvalidProfile, i)
		}
	}
	for key := range p.Environment {
		if key == "" || strings.ContainsAny(key, "= \t\n") {
			return fmt.Errorf("%w: environment key %q is not a valid variable name", ErrInvalidProfile, key)
		}
	}
	if p.Probe.Attempts < 0 {
		return fmt.Errorf("%w: probe.attempts must not be negative", ErrInvalidProfile)
	}
	if p.Probe.Method != ProbeHTTP && p.Probe.Method != ProbeICMP {
		return fmt.Errorf("%w: probe.method must be %q or %q, got %q", ErrInvalidProfile, ProbeHTTP, ProbeICMP, p.Probe.Method)
	}
	return nil
}

func validateAssets(field string, assets []Asset) error {
	for i, a := range assets {
		if a.Source == "" {
			return fmt.Errorf("%w: %s[%d] has no source", ErrInvalidProfile, field, i)
		}
		if filepath.IsAbs(a.Target) || strings.HasPrefix(filepath.Clean(a.Target), "..") {
			return fmt.Errorf("%w: %s[%d] target %q must stay inside its directory", ErrInvalidProfile, field, i, a.Target)
		}
		if _, err := a.FileMode(); err != nil {
			return fmt.Errorf("%w: %s[%d]: %v", ErrInvalidProfile, field, i, err)
		}
	}
	return nil
}
