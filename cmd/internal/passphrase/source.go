package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a keystore passphrase from an environment variable or by
// prompting on the terminal. The first successful answer is cached.
type Source struct {
	envVar  string
	confirm bool

	// prompt reads a secret without echo. Replaced in tests.
	prompt func(label string) (string, error)
	isTTY  func() bool

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a source that checks envVar before prompting.
func NewSource(envVar string) *Source {
	return &Source{
		envVar: strings.TrimSpace(envVar),
		prompt: readPassword(os.Stderr),
		isTTY:  func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

// WithConfirmation makes interactive prompts ask twice, for new keystores.
func (s *Source) WithConfirmation() *Source {
	s.confirm = true
	return s
}

// Get returns the cached passphrase or resolves it on first use. Whitespace
// only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	if !s.isTTY() {
		if s.envVar != "" {
			return "", fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
		}
		return "", errors.New("keystore passphrase required and no terminal available")
	}
	value, err := s.prompt("Enter keystore passphrase: ")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return "", errors.New("keystore passphrase cannot be empty")
	}
	if s.confirm {
		again, err := s.prompt("Repeat keystore passphrase: ")
		if err != nil {
			return "", err
		}
		if again != value {
			return "", errors.New("keystore passphrases do not match")
		}
	}
	return value, nil
}

func readPassword(out io.Writer) func(string) (string, error) {
	return func(label string) (string, error) {
		fmt.Fprint(out, label)
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(bytes), nil
	}
}
