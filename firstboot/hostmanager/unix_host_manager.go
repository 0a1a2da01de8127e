package hostmanager

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

type UnixHostManager struct {
	CommandManager cm.CommandManager
}

// Info gathers comprehensive information about the host system.
func (uhm *UnixHostManager) Info(ctx context.Context) (HostInfo, error) {
	hostname, err := uhm.Hostname(ctx)
	if err != nil {
		return HostInfo{}, err
	}

	kernel, err := uhm.uname(ctx, "-s")
	if err != nil {
		return HostInfo{}, err
	}

	kernelVersion, err := uhm.uname(ctx, "-r")
	if err != nil {
		return HostInfo{}, err
	}

	info := HostInfo{
		Hostname:      hostname,
		Kernel:        kernel,
		KernelVersion: kernelVersion,
	}

	if kernel == "Darwin" {
		cores, err := uhm.sysctlInt(ctx, "hw.ncpu")
		if err != nil {
			return HostInfo{}, err
		}
		info.NumberOfCores = int(cores)
		memory, err := uhm.sysctlInt(ctx, "hw.memsize")
		if err != nil {
			return HostInfo{}, err
		}
		info.TotalMemory = uint64(memory)
		return info, nil
	}

	info.NumberOfCores, err = uhm.cpuCount(ctx)
	if err != nil {
		return HostInfo{}, err
	}
	info.TotalMemory, err = uhm.totalMemory(ctx)
	if err != nil {
		return HostInfo{}, err
	}
	return info, nil
}

func (uhm *UnixHostManager) Hostname(ctx context.Context) (string, error) {
	output, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "hostname",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output.STDOUT), nil
}

// OSRelease identifies the distribution. Darwin has no /etc/os-release, so
// uname is asked first.
func (uhm *UnixHostManager) OSRelease(ctx context.Context) (OSRelease, error) {
	kernel, err := uhm.uname(ctx, "-s")
	if err != nil {
		return OSRelease{}, err
	}
	if kernel == "Darwin" {
		return OSRelease{ID: "darwin", Name: "macOS"}, nil
	}

	output, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "cat",
		Args:    []string{"/etc/os-release"},
	})
	if err != nil {
		return OSRelease{}, err
	}

	release := parseOSRelease(output.STDOUT)
	if release.ID == "" {
		return OSRelease{}, errors.New("no ID in /etc/os-release")
	}
	return release, nil
}

func parseOSRelease(content string) OSRelease {
	var release OSRelease
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || strings.HasPrefix(key, "#") {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "ID":
			release.ID = strings.ToLower(value)
		case "ID_LIKE":
			release.IDLike = strings.Fields(strings.ToLower(value))
		case "VERSION_ID":
			release.VersionID = value
		case "NAME":
			release.Name = value
		}
	}
	return release
}

func (uhm *UnixHostManager) uname(ctx context.Context, flag string) (string, error) {
	output, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "uname",
		Args:    []string{flag},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output.STDOUT), nil
}

func (uhm *UnixHostManager) sysctlInt(ctx context.Context, name string) (int64, error) {
	output, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "sysctl",
		Args:    []string{"-n", name},
	})
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(output.STDOUT), 10, 64)
}

// cpuCount retrieves the number of CPU cores.
func (uhm *UnixHostManager) cpuCount(ctx context.Context) (int, error) {
	output, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "nproc",
	})
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(strings.TrimSpace(output.STDOUT))
}

// totalMemory reads MemTotal from /proc/meminfo, which is in kB.
func (uhm *UnixHostManager) totalMemory(ctx context.Context) (uint64, error) {
	output, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "cat",
		Args:    []string{"/proc/meminfo"},
	})
	if err != nil {
		return 0, err
	}

	for _, line := range strings.Split(output.STDOUT, "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return 0, errors.New("unexpected format in /proc/meminfo")
		}
		kb, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing MemTotal: %w", err)
		}
		return kb * 1024, nil
	}

	return 0, errors.New("could not find MemTotal in /proc/meminfo")
}
