package cli

import (
	"os"

	survey "github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"
)

// isTTY reports whether stdin is an interactive terminal; destructive
// flags (--purge, --commit) refuse to run unattended against a pipe
// unless --yes was passed.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// askConfirm prompts the user with a yes/no question via survey.
func askConfirm(message string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &ok, survey.WithStdio(os.Stdin, os.Stdout, os.Stderr)); err != nil {
		return false, err
	}
	return ok, nil
}
