package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/oneclickvirt/console/src/host"
)

// cliNotifier prints notifications to the terminal, one per line
type cliNotifier struct {
	muted  atomic.Bool
	mu     sync.Mutex
	w      io.Writer
	styles map[host.Severity]lipgloss.Style
}

func newNotifier(w io.Writer, color bool) *cliNotifier {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	label := func(c lipgloss.Color) lipgloss.Style {
		return r.NewStyle().Foreground(c).Bold(true)
	}
	return &cliNotifier{
		w: w,
		styles: map[host.Severity]lipgloss.Style{
			host.SeverityInfo:    label(lipgloss.Color("#8be9fd")),
			host.SeveritySuccess: label(lipgloss.Color("#50fa7b")),
			host.SeverityWarning: label(lipgloss.Color("#ffb86c")),
			host.SeverityError:   label(lipgloss.Color("#ff5555")),
		},
	}
}

// Notify implements host.Notifier
func (n *cliNotifier) Notify(message string, severity host.Severity) {
	if n.muted.Load() {
		return
	}
	style, ok := n.styles[severity]
	if !ok {
		severity = host.SeverityInfo
		style = n.styles[severity]
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "%s %s\n", style.Render(string(severity)+":"), message)
}

// cliConfirmer asks y/N questions on the terminal. Without a terminal it
// refuses unless assumeYes is set.
type cliConfirmer struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	assumeYes   bool
}

func newConfirmer(in io.Reader, out io.Writer, assumeYes bool) *cliConfirmer {
	return &cliConfirmer{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: isTerminal(in),
		assumeYes:   assumeYes,
	}
}

// Confirm implements host.Confirmer
func (c *cliConfirmer) Confirm(ctx context.Context, message, title string, opts host.ConfirmOptions) bool {
	if c.assumeYes {
		return true
	}
	if !c.interactive || ctx.Err() != nil {
		return false
	}
	if title != "" {
		fmt.Fprintln(c.out, title)
	}
	fmt.Fprintf(c.out, "%s [y/N]: ", message)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch answer := strings.ToLower(strings.TrimSpace(line)); answer {
	case "y", "yes":
		return true
	default:
		return opts.ConfirmText != "" && answer == strings.ToLower(opts.ConfirmText)
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// readSecret reads a line without echo when r is a terminal
func readSecret(r *bufio.Reader, raw io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(r)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
