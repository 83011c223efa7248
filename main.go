package main

import (
	"fmt"
	"os"
	"strings"

	"quill/cli"
)

const CliVersion = "1.0.0"

// exit is replaced in tests.
var exit = os.Exit

func main() {
	RealMain()
}

// RealMain dispatches os.Args and exits with the command's status.
func RealMain() {
	if len(os.Args) < 2 {
		printHelp()
		exit(1)
		return
	}

	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "help", "-h", "--help":
		printHelp()
	case "version":
		fmt.Printf("quill version %s\n", CliVersion)
	default:
		exit(cli.HandleCommand(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
	}
}

func printHelp() {
	cli.PrintHelp(os.Stdout)
}
