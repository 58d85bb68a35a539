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

// Source lazily resolves a keystore passphrase from an environment variable or
// by prompting on the terminal. The value is cached after the first successful
// retrieval.
type Source struct {
	envVar  string
	confirm bool

	lookupEnv func(string) (string, bool)
	isTTY     func() bool
	readLine  func() ([]byte, error)
	prompt    io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source that checks envVar before
// prompting.
func NewSource(envVar string) *Source {
	fd := int(os.Stdin.Fd())
	return &Source{
		envVar:    strings.TrimSpace(envVar),
		lookupEnv: os.LookupEnv,
		isTTY:     func() bool { return term.IsTerminal(fd) },
		readLine:  func() ([]byte, error) { return term.ReadPassword(fd) },
		prompt:    os.Stderr,
	}
}

// WithConfirmation makes interactive prompts ask twice, for new keystores.
func (s *Source) WithConfirmation() *Source {
	s.confirm = true
	return s
}

// Get returns the cached passphrase or resolves it on the first call.
// Whitespace-only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := s.lookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		if !s.isTTY() {
			if s.envVar != "" {
				s.err = fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
			} else {
				s.err = errors.New("keystore passphrase required and no terminal available")
			}
			return
		}

		passphrase, err := s.read("Enter keystore passphrase: ")
		if err != nil {
			s.err = err
			return
		}
		if s.confirm {
			again, err := s.read("Repeat keystore passphrase: ")
			if err != nil {
				s.err = err
				return
			}
			if again != passphrase {
				s.err = errors.New("passphrases do not match")
				return
			}
		}
		s.value = passphrase
	})

	return s.value, s.err
}

func (s *Source) read(label string) (string, error) {
	fmt.Fprint(s.prompt, label)
	bytes, err := s.readLine()
	fmt.Fprintln(s.prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	passphrase := string(bytes)
	if strings.TrimSpace(passphrase) == "" {
		return "", errors.New("keystore passphrase cannot be empty")
	}
	return passphrase, nil
}
