package ui

import (
	"fmt"
	"io"
	"os"
)

// Printer provides methods for printing UI components to a writer.
// Commands write through a Printer so output can be captured in tests.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Printf writes formatted content
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params []KV) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details []KV) {
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintFailure prints a failure result box with troubleshooting tips
func (p *Printer) PrintFailure(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintPanel prints a key-value panel
func (p *Printer) PrintPanel(title string, rows []KV) {
	p.Println(RenderPanel(title, rows, p.width))
}

// PrintNote prints a muted trailing hint
func (p *Printer) PrintNote(note string) {
	p.Println(NoteStyle.Render("  " + note))
}
