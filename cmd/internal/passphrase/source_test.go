package passphrase

import (
	"errors"
	"testing"
)

func scripted(answers ...string) func(string) (string, error) {
	return func(string) (string, error) {
		if len(answers) == 0 {
			return "", errors.New("no more answers")
		}
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}
}

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("CROWDFUND_TEST_PASS", "from-env")
	src := NewSource("CROWDFUND_TEST_PASS")
	src.prompt = scripted()
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("expected env passphrase, got %q", got)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("CROWDFUND_TEST_PASS", "   ")
	if _, err := NewSource("CROWDFUND_TEST_PASS").Get(); err == nil {
		t.Fatalf("expected blank passphrase to be rejected")
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	src := NewSource("")
	src.isTTY = func() bool { return false }
	if _, err := src.Get(); err == nil {
		t.Fatalf("expected error without terminal")
	}
}

func TestSourceConfirmation(t *testing.T) {
	src := NewSource("").WithConfirmation()
	src.isTTY = func() bool { return true }
	src.prompt = scripted("secret", "different")
	if _, err := src.Get(); err == nil {
		t.Fatalf("expected mismatch error")
	}

	src = NewSource("").WithConfirmation()
	src.isTTY = func() bool { return true }
	src.prompt = scripted("secret", "secret")
	got, err := src.Get()
	if err != nil || got != "secret" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
	// cached
	src.prompt = scripted()
	if again, _ := src.Get(); again != "secret" {
		t.Fatalf("expected cached passphrase")
	}
}
