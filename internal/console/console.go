// Package console is the terminal face of the chat: styled output lines,
// line input and a plain yes/no prompt.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/nextlevelbuilder/hitlchat/internal/agent"
	"github.com/nextlevelbuilder/hitlchat/internal/providers"
)

const (
	WelcomeText  = "Welcome to the chatbot! Type 'exit' to quit."
	FarewellText = "👋 Bye..."
	Prompt       = "> "

	agentPrefix  = "🤖: "
	systemPrefix = "⚙️: "
)

// ErrInputClosed is returned by Confirm when input ends before an answer.
var ErrInputClosed = errors.New("console: input closed")

// Console writes to out/errOut and reads lines from in. One reader backs
// both the REPL and confirmation prompts so buffered input is never lost.
type Console struct {
	mu     sync.Mutex
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	welcome  lipgloss.Style
	farewell lipgloss.Style
	system   lipgloss.Style
	failure  lipgloss.Style
}

func New(in io.Reader, out, errOut io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	er := lipgloss.NewRenderer(errOut)
	return &Console{
		in:       bufio.NewReader(in),
		out:      out,
		errOut:   errOut,
		welcome:  r.NewStyle().Foreground(lipgloss.Color("2")),
		farewell: r.NewStyle().Foreground(lipgloss.Color("1")),
		system:   r.NewStyle().Foreground(lipgloss.Color("8")),
		failure:  er.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func (c *Console) Welcome() {
	c.println(c.out, c.welcome.Render(WelcomeText))
}

func (c *Console) Farewell() {
	c.println(c.out, c.farewell.Render(FarewellText))
}

// Agent prints one update message.
func (c *Console) Agent(msg providers.Message) {
	c.println(c.out, agentPrefix+agent.FormatMessage(msg))
}

// System prints a status line from the interrupt gate or the loop.
func (c *Console) System(format string, args ...any) {
	c.println(c.out, c.system.Render(systemPrefix+fmt.Sprintf(format, args...)))
}

// Error prints to the error stream.
func (c *Console) Error(format string, args ...any) {
	c.println(c.errOut, c.failure.Render(systemPrefix+fmt.Sprintf(format, args...)))
}

// ReadLine shows prompt and returns the next line without its line
// terminator. Other whitespace is preserved. io.EOF means no more input.
func (c *Console) ReadLine(prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prompt != "" {
		fmt.Fprint(c.out, prompt)
	}
	line, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return trimEOL(line), nil
		}
		return "", err
	}
	return trimEOL(line), nil
}

// Confirm asks question until the answer is y/yes/n/no.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		line, err := c.ReadLine(question + " (y/n): ")
		if errors.Is(err, io.EOF) {
			return false, ErrInputClosed
		}
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(c.out, "Please answer y or n.")
	}
}

func (c *Console) println(w io.Writer, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(w, s)
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// Truncate shortens s to width display cells, ending with "…" when cut.
// Newlines are flattened to spaces first.
func Truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
