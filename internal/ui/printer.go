package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muurk/gfhanger/internal/gateway"
)

// Printer writes styled or plain output. Styling is disabled when the
// output is not a terminal.
type Printer struct {
	out    io.Writer
	width  int
	styled bool
}

// NewPrinter creates a Printer for w, or stdout when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		return &Printer{out: os.Stdout, width: GetTerminalWidth(), styled: IsTerminal()}
	}
	return &Printer{out: w, width: MinTerminalWidth}
}

// Styled reports whether boxes and colors are rendered.
func (p *Printer) Styled() bool {
	return p.styled
}

// Println writes a line.
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintHeader prints a banner.
func (p *Printer) PrintHeader(title, command string, params []Param) {
	if !p.styled {
		return
	}
	p.Println(RenderHeader(title, command, params, p.width))
}

// PrintSuccess prints a success box, or key: value lines when plain.
func (p *Printer) PrintSuccess(title string, details []Param) {
	if !p.styled {
		p.Println(title)
		for _, d := range details {
			p.Println(fmt.Sprintf("  %s: %s", d.Key, d.Value))
		}
		return
	}
	p.Println(RenderSuccessBox(title, details, p.width))
}

// PrintError prints an error with the troubleshooting hint for it.
func (p *Printer) PrintError(title string, err error) {
	hint := gateway.TroubleshootingHint(err)
	if !p.styled {
		p.Println(fmt.Sprintf("%s: %v", title, err))
		p.Println(hint)
		return
	}
	p.Println(RenderErrorBox(title, err, hint, p.width))
}

// PrintDevices prints the device table.
func (p *Printer) PrintDevices(devices []gateway.Device) {
	if p.styled {
		p.Println(renderTable(devices, -1, p.width))
		return
	}
	for _, d := range devices {
		p.Println(fmt.Sprintf("%s\t%s\t%s\t%s", d.ID, d.Name, d.Status, d.Position))
	}
}

// FormatEvent renders a status event as one plain log line.
func FormatEvent(ev gateway.StatusEvent) string {
	kind := "status"
	if ev.Snapshot {
		kind = "snapshot"
	}
	return fmt.Sprintf("%s %-8s %s %q status=%s position=%s(%d)",
		ev.Time.Format(time.RFC3339), kind, ev.DeviceID, ev.Name, ev.Status, ev.Position, int(ev.Position))
}
