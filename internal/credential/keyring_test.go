package credential_test

import (
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/teamboard/internal/credential"
	"github.com/nhle/teamboard/internal/remote"
)

var _ remote.TokenSource = (*credential.Store)(nil)

func TestTokenLifecycle(t *testing.T) {
	s := credential.NewStore(keyring.NewArrayKeyring(nil))

	steps := []struct {
		name string
		do   func() error
		want string
	}{
		{"signed out", func() error { return nil }, ""},
		{"set", func() error { return s.Set(credential.TokenKey, "abc") }, "abc"},
		{"overwrite", func() error { return s.Set(credential.TokenKey, "def") }, "def"},
		{"delete", func() error { return s.Delete(credential.TokenKey) }, ""},
		{"delete again", func() error { return s.Delete(credential.TokenKey) }, ""},
	}
	for _, step := range steps {
		if err := step.do(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		got, err := s.Token()
		if err != nil {
			t.Fatalf("%s: Token: %v", step.name, err)
		}
		if got != step.want {
			t.Errorf("%s: Token got %q, want %q", step.name, got, step.want)
		}
	}
}
