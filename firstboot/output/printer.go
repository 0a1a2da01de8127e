// Package output renders the user-facing lines of a provisioning run: one
// status line per evaluated package and a final summary line.
//
// Status lines use a fixed name column followed by a right-aligned version
// column so that every line of a run lines up. Values wider than their column
// are cut short with an ellipsis. Colour is only emitted when writing to a
// terminal and NO_COLOR is unset.
//
// A Printer is safe for concurrent use. Hosts provisioned in parallel each
// get their own buffered printer from ForHost, flushed as one block.
package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
)

const (
	DefaultNameWidth    = 32
	DefaultVersionWidth = 28
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

const (
	notInstalledMarker = "not installed"
	ellipsis           = "…"
)

type Printer struct {
	mu           *sync.Mutex
	w            io.Writer
	color        bool
	NameWidth    int
	VersionWidth int

	parent *Printer
	buf    *bytes.Buffer
}

// NewPrinter writes to w. Colour is enabled when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		mu:           &sync.Mutex{},
		w:            w,
		color:        isColorEnabled(w),
		NameWidth:    DefaultNameWidth,
		VersionWidth: DefaultVersionWidth,
	}
}

// ForHost returns a printer that buffers everything for hostname under a
// header line until Flush.
func (p *Printer) ForHost(hostname string) *Printer {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%s:\n", hostname)
	return &Printer{
		mu:           &sync.Mutex{},
		w:            buf,
		color:        p.color,
		NameWidth:    p.NameWidth,
		VersionWidth: p.VersionWidth,
		parent:       p,
		buf:          buf,
	}
}

// Flush writes the buffered block to the parent printer in one piece. It is
// a no-op on a printer not created by ForHost.
func (p *Printer) Flush() error {
	if p.parent == nil {
		return nil
	}
	p.mu.Lock()
	block := p.buf.String()
	p.buf.Reset()
	p.mu.Unlock()
	if block == "" {
		return nil
	}
	return p.parent.printf("%s\n", block)
}

func (p *Printer) printf(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, format, args...)
	return err
}

func isColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) paint(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + colorReset
}

// fit cuts s to width runes.
func fit(s string, width int) string {
	if width < 1 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + ellipsis
}

// line pads before painting so escape codes never shift the columns.
func (p *Printer) line(name, value, color string) {
	name = fit(name, p.NameWidth)
	value = fit(value, p.VersionWidth)
	p.printf("%-*s %s\n", p.NameWidth, name, p.paint(color, fmt.Sprintf("%*s", p.VersionWidth, value)))
}

func (p *Printer) NotInstalled(name string) {
	p.line(name, notInstalledMarker, colorYellow)
}

func (p *Printer) Installed(name, version string) {
	p.line(name, version, colorGreen)
}

func (p *Printer) UpToDate() {
	p.printf("All packages are installed, nothing to do.\n")
}

func (p *Printer) Installing(names []string) {
	p.printf("Installing %d package(s): %s\n", len(names), strings.Join(names, " "))
}

func (p *Printer) Offline(target string) {
	p.printf("%s is unreachable, skipping package and asset installation.\n", target)
}

func (p *Printer) Failed(hostname string, err error) {
	p.printf("%s %v\n", p.paint(colorRed, "provisioning "+hostname+" failed:"), err)
}

// Summary prints the closing line of a run.
func (p *Printer) Summary(hostname string, installed, present int, elapsed time.Duration) {
	p.printf("Provisioned %s in %s (%d installed, %d already present)\n",
		hostname, elapsed.Round(time.Millisecond), installed, present)
}

// Missing prints the closing line of a plan.
func (p *Printer) Missing(missing, total int) {
	p.printf("%d of %d package(s) missing\n", missing, total)
}
