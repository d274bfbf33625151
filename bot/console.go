package bot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// ConsoleTransport is a line-oriented stand-in for a real chat platform,
// useful for local operation and manual testing. Input lines are
// "<userID> <command...>"; replies are written as "[to <userID>] <text>".
type ConsoleTransport struct {
	out io.Writer
}

func NewConsoleTransport(out io.Writer) *ConsoleTransport {
	return &ConsoleTransport{out: out}
}

// Send implements Sender.
func (t *ConsoleTransport) Send(_ context.Context, userID, text string) error {
	_, err := fmt.Fprintf(t.out, "[to %s] %s\n", userID, text)
	return err
}

// Run reads commands from in until EOF, dispatching each line to the
// handler. Command errors never stop the loop.
func (t *ConsoleTransport) Run(ctx context.Context, in io.Reader, handler *Handler) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		userID, command, found := strings.Cut(line, " ")
		if !found {
			fmt.Fprintln(t.out, "input format: <userID> <command...>")
			continue
		}

		if err := handler.HandleCommand(ctx, userID, command); err != nil {
			fmt.Fprintf(t.out, "reply to %s failed: %v\n", userID, err)
		}
	}
	return scanner.Err()
}
