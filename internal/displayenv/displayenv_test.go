package displayenv

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/1broseidon/deskveil/internal/config"
)

func TestResolve_ConfigWins(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return ":99", "/tmp/should-not-be-used" },
		func(string) string { return ":88" },
	)
	defer restore()

	env := []string{"HOME=" + t.TempDir(), "DISPLAY=:7", "XAUTHORITY=/tmp/xauth-existing"}
	got, err := Resolve(env, &config.Config{Display: ":1", XAuthority: "/tmp/cfg"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Display != ":1" || got.XAuthority != "/tmp/cfg" {
		t.Fatalf("Resolve = %#v, want config values", got)
	}
}

func TestResolve_UsesExistingEnv(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return ":99", "/tmp/should-not-be-used" },
		func(string) string { return ":88" },
	)
	defer restore()

	env := []string{"HOME=" + t.TempDir(), "DISPLAY=:7", "XAUTHORITY=/tmp/xauth-existing"}
	got, err := Resolve(env, &config.Config{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Display != ":7" || got.XAuthority != "/tmp/xauth-existing" {
		t.Fatalf("Resolve = %#v, want env values", got)
	}
}

func TestResolve_FallsBackToHomeXAuthority(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return "", "" },
		func(string) string { return "" },
	)
	defer restore()

	home := t.TempDir()
	xauth := filepath.Join(home, ".Xauthority")
	if err := os.WriteFile(xauth, []byte("cookie"), 0600); err != nil {
		t.Fatalf("write xauthority: %v", err)
	}

	got, err := Resolve([]string{"HOME=" + home}, &config.Config{Display: ":1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Display != ":1" || got.XAuthority != xauth {
		t.Fatalf("Resolve = %#v, want :1 and %s", got, xauth)
	}
}

func TestResolve_UsesDetectedSession(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return ":5", "/tmp/xauth-detected" },
		func(string) string { return ":9" },
	)
	defer restore()

	got, err := Resolve([]string{"HOME=" + t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Display != ":5" || got.XAuthority != "/tmp/xauth-detected" {
		t.Fatalf("Resolve = %#v, want detected session", got)
	}
}

func TestResolve_SocketFallback(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return "", "" },
		func(string) string { return ":3" },
	)
	defer restore()

	got, err := Resolve([]string{"HOME=" + t.TempDir()}, &config.Config{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Display != ":3" {
		t.Fatalf("Display = %q, want :3", got.Display)
	}
}

func TestResolve_NoDisplay(t *testing.T) {
	restore := stubDetectFns(
		func() (string, string) { return "", "" },
		func(string) string { return "" },
	)
	defer restore()

	_, err := Resolve([]string{"HOME=" + t.TempDir()}, &config.Config{})
	if err == nil || !strings.Contains(err.Error(), "no X display found") {
		t.Fatalf("expected no display error, got %v", err)
	}
}

func TestDetectDisplayFromSockets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"X0", "X2", "not-a-display"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{}, 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if got := detectDisplayFromSockets(dir); got != ":2" {
		t.Fatalf("detectDisplayFromSockets = %q, want %q", got, ":2")
	}
	if got := detectDisplayFromSockets(filepath.Join(dir, "missing")); got != "" {
		t.Fatalf("expected empty display for missing dir, got %q", got)
	}
}

func TestParseLoginctlSessions(t *testing.T) {
	out := strings.Join([]string{
		"1 1000 george seat0",
		"2 1001 alice seat0",
		"3 1000 george seat1",
		"",
	}, "\n")
	got := parseLoginctlSessions(out, "1000")
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Fatalf("parseLoginctlSessions = %v, want [1 3]", got)
	}
}

func TestDetectSessionX11Env(t *testing.T) {
	origRun, origRead := runCommandOutputFn, readFileFn
	defer func() { runCommandOutputFn, readFileFn = origRun, origRead }()

	uid := os.Getuid()
	runCommandOutputFn = func(name string, args ...string) (string, error) {
		if len(args) > 0 && args[0] == "list-sessions" {
			return "4 " + strconv.Itoa(uid) + " user seat0\n", nil
		}
		switch args[len(args)-2] {
		case "Display":
			return ":0\n", nil
		case "Leader":
			return "1234\n", nil
		}
		return "", errors.New("unexpected")
	}
	readFileFn = func(path string) ([]byte, error) {
		if path != "/proc/1234/environ" {
			return nil, os.ErrNotExist
		}
		return []byte("DISPLAY=:1\x00XAUTHORITY=/run/user/1000/xauth\x00"), nil
	}

	display, xauth := detectSessionX11Env()
	if display != ":1" || xauth != "/run/user/1000/xauth" {
		t.Fatalf("detectSessionX11Env = %q %q", display, xauth)
	}
}

func stubDetectFns(
	detectSession func() (string, string),
	detectSocket func(string) string,
) func() {
	origSession := detectSessionX11EnvFn
	origSocket := detectDisplayFromSocketFn
	detectSessionX11EnvFn = detectSession
	detectDisplayFromSocketFn = detectSocket
	return func() {
		detectSessionX11EnvFn = origSession
		detectDisplayFromSocketFn = origSocket
	}
}
