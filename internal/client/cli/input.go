package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// GetPassword prints a prompt to w and reads a secret from the terminal
// without echo. The caller should wipe the returned slice.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// cutFields splits the first n whitespace-separated tokens off line and
// returns them together with the untouched remainder.
func cutFields(line string, n int) ([]string, string) {
	rest := strings.TrimSpace(line)
	head := make([]string, 0, n)
	for len(head) < n && rest != "" {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			head = append(head, rest)
			rest = ""
			break
		}
		head = append(head, rest[:i])
		rest = strings.TrimSpace(rest[i:])
	}
	return head, rest
}

// parseFields decodes a JSON object typed on the command line.
func parseFields(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("fields are required as a JSON object")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("fields must be a JSON object")
	}
	return data, nil
}
