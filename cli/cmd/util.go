package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

// resolvePassword returns the vault password from the flag, the environment,
// or an interactive prompt, in that order.
func resolvePassword(prompt string) (string, error) {
	if password := viper.GetString("vault.password"); password != "" {
		return password, nil
	}
	return promptSecret(prompt)
}

// promptSecret reads a line without echo when stdin is a terminal; otherwise
// it reads a plain line so the command stays scriptable.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptSecretConfirmed asks twice and requires both entries to match.
func promptSecretConfirmed(prompt string) (string, error) {
	first, err := promptSecret(prompt)
	if err != nil {
		return "", err
	}
	second, err := promptSecret("Confirm: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("entries do not match")
	}
	return first, nil
}
