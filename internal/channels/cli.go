package channels

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cmdlink/cmdlink/internal/bus"
)

var cliExitCommands = map[string]bool{
	"exit": true,
	"quit": true,
	":q":   true,
}

const (
	cliSenderID = "local"
	cliChatID   = "direct"
)

// CLIChannel wires the terminal (stdin/stdout) into the channel manager:
// each typed line becomes an inbound message and command output addressed to
// the CLI prints to stdout.
type CLIChannel struct {
	Base
}

func NewCLIChannel(b *bus.MessageBus) *CLIChannel {
	return &CLIChannel{Base: NewBase("cli", b, nil)}
}

func (c *CLIChannel) Name() string { return "cli" }

// Start runs the stdin REPL. Blocks until ctx is cancelled or stdin closes.
func (c *CLIChannel) Start(ctx context.Context) error {
	fmt.Printf("CLI channel ready. Type 'exit' or press Ctrl+C to quit.\n\n")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")

		scanDone := make(chan bool, 1)
		go func() {
			scanDone <- scanner.Scan()
		}()

		select {
		case ok := <-scanDone:
			if !ok {
				fmt.Println("\nGoodbye!")
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if cliExitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		c.HandleMessage(cliSenderID, cliChatID, line)
	}
}

// Send prints an outbound message to stdout.
func (c *CLIChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	fmt.Println(msg.Content)
	return nil
}
