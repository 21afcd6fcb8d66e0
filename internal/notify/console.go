package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warningColor = lipgloss.AdaptiveColor{Light: "#D29922", Dark: "#FECA57"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#D73A49", Dark: "#FF8787"}
)

// Console prints notifications as lines of text for the command line.
//
// Run summaries are printed as a single line. Structured entries are printed under a
// one-time error header, each prefixed with "*** ".
type Console struct {
	w       io.Writer
	catalog *Catalog

	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style

	mu      sync.Mutex
	entries int
}

// NewConsole creates a Console writing to w. Colors are only used when w is a terminal.
func NewConsole(w io.Writer, catalog *Catalog) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:       w,
		catalog: catalog,
		success: r.NewStyle().Foreground(successColor),
		warning: r.NewStyle().Foreground(warningColor),
		failure: r.NewStyle().Foreground(errorColor).Bold(true),
	}
}

// Notify implements Sink. The user is ignored; the console has one reader.
func (c *Console) Notify(_ context.Context, _ string, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := c.catalog.Render(n)
	if n.Entry {
		if c.entries == 0 {
			if _, err := fmt.Fprintln(c.w, c.failure.Render(c.catalog.Text(KeyCLIError, ""))); err != nil {
				return err
			}
		}
		c.entries++
		_, err := fmt.Fprintln(c.w, "*** "+text)
		return err
	}

	_, err := fmt.Fprintln(c.w, c.style(n.Severity).Render(text))
	return err
}

// Entries returns how many structured entries were printed.
func (c *Console) Entries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries
}

func (c *Console) style(s Severity) lipgloss.Style {
	switch s {
	case SeveritySuccess:
		return c.success
	case SeverityWarning:
		return c.warning
	case SeverityError:
		return c.failure
	default:
		return lipgloss.NewStyle()
	}
}
