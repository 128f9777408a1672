package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// CLIPrompter asks approval questions over a plain stdin/stdout pair,
// the same bufio.Scanner-driven idiom the teacher's own interactive chat
// loop uses rather than a full-screen TUI.
type CLIPrompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewCLIPrompter wraps in/out for reading yes/no/always answers.
func NewCLIPrompter(in io.Reader, out io.Writer) *CLIPrompter {
	return &CLIPrompter{in: bufio.NewScanner(in), out: out}
}

// Ask renders the request and blocks for a line of input. A dangerous
// pattern match (TypedConfirm) requires the literal word "confirm"
// rather than accepting a single-key "y".
func (p *CLIPrompter) Ask(ctx context.Context, req Request) (Decision, error) {
	if req.TypedConfirm {
		fmt.Fprintf(p.out, "\n⚠ %s (%s)\n", req.DangerWhy, req.ToolName)
		fmt.Fprintf(p.out, "%s\n", req.Preview)
		fmt.Fprint(p.out, "Type \"confirm\" to run this command, anything else to deny: ")
		answer, err := p.readLine(ctx)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Approved: strings.TrimSpace(answer) == "confirm"}, nil
	}

	fmt.Fprintf(p.out, "\nRun %s? %s\n", req.ToolName, req.Preview)
	fmt.Fprint(p.out, "[y]es / [n]o / always-this-[t]ool / always-this-[p]attern: ")
	answer, err := p.readLine(ctx)
	if err != nil {
		return Decision{}, err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return Decision{Approved: true}, nil
	case "t", "always-this-tool":
		return Decision{Approved: true, Always: "tool"}, nil
	case "p", "always-this-pattern":
		return Decision{Approved: true, Always: "pattern"}, nil
	default:
		return Decision{Approved: false}, nil
	}
}

func (p *CLIPrompter) readLine(ctx context.Context) (string, error) {
	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		if p.in.Scan() {
			lines <- p.in.Text()
			return
		}
		if err := p.in.Err(); err != nil {
			errs <- err
			return
		}
		errs <- io.EOF
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errs:
		return "", err
	case line := <-lines:
		return line, nil
	}
}
