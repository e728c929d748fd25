package identity

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// TerminalPrompt reads the username from stdin and the password with echo
// disabled
func TerminalPrompt() (string, string, error) {
	fmt.Println()
	fmt.Println("Storywave Login")
	fmt.Println("━━━━━━━━━━━━━━━")

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("failed to read username: %w", err)
	}

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println() // Newline after hidden input

	return strings.TrimSpace(username), string(passwordBytes), nil
}
