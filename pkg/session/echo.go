package session

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// echo prints inbound traffic to a console, dimmed and cut to one line.
type echo struct {
	mu    sync.Mutex
	w     io.Writer
	style lipgloss.Style
}

func newEcho(w io.Writer, width int) *echo {
	if w == nil {
		w = os.Stdout
	}
	return &echo{
		w: w,
		style: lipgloss.NewRenderer(w).NewStyle().
			Foreground(lipgloss.Color("8")).
			MaxWidth(width),
	}
}

func (e *echo) print(data []byte) {
	line := strings.Join(strings.Fields(string(data)), " ")

	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintln(e.w, e.style.Render(line))
}
