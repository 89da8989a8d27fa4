package cmd

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/visa-rescheduler/internal/auth"
	"github.com/example/visa-rescheduler/internal/secret"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil || !strings.HasPrefix(out, "visasched dev") {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestKeys(t *testing.T) {
	out, err := execute(t, "", "keys")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	for _, l := range lines {
		_, val, ok := strings.Cut(l, "=")
		if !ok {
			t.Fatalf("bad line %q", l)
		}
		b, err := base64.StdEncoding.DecodeString(val)
		if err != nil || len(b) != 32 {
			t.Fatalf("key %q: %d bytes, err %v", val, len(b), err)
		}
	}
}

func TestHashPasswordFromStdin(t *testing.T) {
	out, err := execute(t, "s3cret\n", "hash-password")
	if err != nil {
		t.Fatal(err)
	}
	if !auth.CheckPassword(strings.TrimSpace(out), "s3cret") {
		t.Fatalf("hash %q does not match", out)
	}
}

func TestEmbassies(t *testing.T) {
	out, err := execute(t, "", "embassies")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "es-co-bog") || !strings.Contains(out, "CODE") {
		t.Fatalf("out = %q", out)
	}
}

func TestCheck(t *testing.T) {
	path := writeConfig(t, `
account:
  username: someone@example.com
  password: pw
  schedule_id: "42"
target:
  start: 2024-06-01
  end: 2024-06-30
transport:
  driver: http
`)
	out, err := execute(t, "", "check", "--config", path)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, want := range []string{
		"https://ais.usvisa-info.com/es-co/niv/users/sign_in",
		"/schedule/42/appointment",
		"history      (disabled)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "account:\n  username: someone@example.com\n")
	if _, err := execute(t, "", "check", "--config", path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestAttemptsListRequiresStore(t *testing.T) {
	path := writeConfig(t, "embassy: es-co-bog\n")
	if _, err := execute(t, "", "attempts", "list", "--config", path); err == nil {
		t.Fatal("expected error without store.driver")
	}
}

func TestAttemptsListSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "attempts.db")
	path := writeConfig(t, "store:\n  driver: sqlite\n  dsn: "+db+"\n")
	out, err := execute(t, "", "attempts", "list", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "AT") {
		t.Fatalf("out = %q", out)
	}
}

func TestEncrypt(t *testing.T) {
	key, _ := secret.NewKey()
	keyB64 := base64.StdEncoding.EncodeToString(key)
	out, err := execute(t, "hunter2\n", "encrypt", "--key", keyB64)
	if err != nil {
		t.Fatal(err)
	}
	box, _ := secret.New(key)
	got, err := box.Open(strings.TrimSpace(out))
	if err != nil || got != "hunter2" {
		t.Fatalf("Open(%q) = %q, %v", out, got, err)
	}
}
