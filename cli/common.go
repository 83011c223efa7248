package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompt reads one line after printing label. Reads share one buffered
// reader so consecutive prompts on a pipe see consecutive lines.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.stdout, label)
	return a.readLine()
}

// promptPassword reads a password without echo when stdin is a terminal.
func (a *app) promptPassword(label string) (string, error) {
	fmt.Fprint(a.stdout, label)
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stdout)
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}
	// Fallback for non-terminal (e.g. tests, pipes)
	return a.readLine()
}

func (a *app) readLine() (string, error) {
	if a.lines == nil {
		a.lines = bufio.NewReader(a.stdin)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question defaulting to no.
func (a *app) confirm(question string) bool {
	answer, err := a.prompt(question + " [y/N] ")
	if err != nil {
		return false
	}
	answer = strings.TrimSpace(answer)
	return answer == "y" || answer == "Y"
}
