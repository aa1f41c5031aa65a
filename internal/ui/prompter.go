// Package ui provides the approval and guidance collaborator consumed by
// the execution engine. The engine blocks a single task on these prompts;
// other tasks keep running.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Decision is the outcome of an approval request.
type Decision struct {
	Approved bool
	Reason   string
}

// Guidance is the outcome of a guidance request after a persistent
// failure. An empty Text with Abandon=false means the user had nothing
// to add and the loop should continue unchanged.
type Guidance struct {
	Text    string
	Abandon bool
}

// Prompter is the user-interaction contract consumed by the engine.
type Prompter interface {
	// RequestApproval asks whether a destructive action may proceed.
	RequestApproval(ctx context.Context, description string) (Decision, error)

	// RequestGuidance presents a summary of failed approaches and
	// collects free-text advice, or the choice to abandon the task.
	RequestGuidance(ctx context.Context, summary string) (Guidance, error)
}

// -----------------------------------------------------------------------------
// AutoPrompter
// -----------------------------------------------------------------------------

// AutoPrompter answers prompts without user interaction. It backs
// non-interactive runs: approvals follow the ApproveAll policy and
// guidance requests return nothing.
type AutoPrompter struct {
	ApproveAll bool
}

// RequestApproval approves or denies based on the configured policy.
func (p *AutoPrompter) RequestApproval(ctx context.Context, description string) (Decision, error) {
	if p.ApproveAll {
		return Decision{Approved: true}, nil
	}
	return Decision{Approved: false, Reason: "destructive actions are not approved in non-interactive mode"}, nil
}

// RequestGuidance returns empty guidance; the loop continues unchanged.
func (p *AutoPrompter) RequestGuidance(ctx context.Context, summary string) (Guidance, error) {
	return Guidance{}, nil
}

// -----------------------------------------------------------------------------
// ConsolePrompter
// -----------------------------------------------------------------------------

var (
	promptTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	promptBodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	promptHintStyle  = lipgloss.NewStyle().Faint(true)
)

// ConsolePrompter reads approval and guidance answers from a terminal.
type ConsolePrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewConsolePrompter creates a ConsolePrompter on stdin/stdout.
func NewConsolePrompter() *ConsolePrompter {
	return &ConsolePrompter{In: os.Stdin, Out: os.Stdout}
}

// RequestApproval prints the action description and reads a y/n answer.
// Anything other than "y" or "yes" is a denial; the typed text becomes
// the denial reason.
func (p *ConsolePrompter) RequestApproval(ctx context.Context, description string) (Decision, error) {
	fmt.Fprintln(p.Out, promptTitleStyle.Render("Approval required"))
	fmt.Fprintln(p.Out, promptBodyStyle.Render(description))
	fmt.Fprint(p.Out, promptHintStyle.Render("approve? [y/N] "))

	line, err := p.readLine(ctx)
	if err != nil {
		return Decision{Approved: false, Reason: "no answer: " + err.Error()}, nil
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "y" || answer == "yes" {
		return Decision{Approved: true}, nil
	}
	reason := "denied by user"
	if answer != "" && answer != "n" && answer != "no" {
		reason = answer
	}
	return Decision{Approved: false, Reason: reason}, nil
}

// RequestGuidance prints the failure summary and reads one line of
// advice. Entering "abandon" gives up on the task; an empty line
// continues without guidance.
func (p *ConsolePrompter) RequestGuidance(ctx context.Context, summary string) (Guidance, error) {
	fmt.Fprintln(p.Out, promptTitleStyle.Render("Task is failing repeatedly"))
	fmt.Fprintln(p.Out, promptBodyStyle.Render(summary))
	fmt.Fprint(p.Out, promptHintStyle.Render("guidance (empty to continue, \"abandon\" to give up): "))

	line, err := p.readLine(ctx)
	if err != nil {
		return Guidance{}, nil
	}

	text := strings.TrimSpace(line)
	if strings.EqualFold(text, "abandon") {
		return Guidance{Abandon: true}, nil
	}
	return Guidance{Text: text}, nil
}

// readLine reads one line, honoring context cancellation.
func (p *ConsolePrompter) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(p.In)
		line, err := reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && r.line == "" {
			return "", r.err
		}
		return r.line, nil
	}
}
