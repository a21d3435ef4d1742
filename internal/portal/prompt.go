package portal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter collects credentials and one-time codes in interactive mode.
type Prompter interface {
	ReadLine(prompt string) (string, error)
	ReadSecret(prompt string) (string, error)
}

// TerminalPrompter reads from the controlling terminal, with no echo for
// secrets.
type TerminalPrompter struct{}

// ReadLine prints the prompt and reads one line from stdin.
func (TerminalPrompter) ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadSecret prints the prompt and reads a line without echoing it.
func (TerminalPrompter) ReadSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}
