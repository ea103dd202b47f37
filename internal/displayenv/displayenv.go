// Package displayenv finds the X display for a daemon started outside the
// graphical session, for example from a systemd user unit.
package displayenv

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/1broseidon/deskveil/internal/config"
)

// X11SocketDir is where X servers create their listening sockets.
const X11SocketDir = "/tmp/.X11-unix"

var (
	runCommandOutputFn        = runCommandOutput
	readFileFn                = os.ReadFile
	readDirFn                 = os.ReadDir
	detectSessionX11EnvFn     = detectSessionX11Env
	detectDisplayFromSocketFn = detectDisplayFromSockets
)

// Env is the resolved X connection environment.
type Env struct {
	Display    string
	XAuthority string
}

// Resolve picks DISPLAY and XAUTHORITY. Precedence: config, then env, then
// the user's login session, then the highest-numbered X socket. XAUTHORITY
// falls back to ~/.Xauthority when it exists.
func Resolve(env []string, cfg *config.Config) (Env, error) {
	var out Env
	if cfg != nil {
		out.Display = strings.TrimSpace(cfg.Display)
		out.XAuthority = strings.TrimSpace(cfg.XAuthority)
	}
	if out.Display == "" {
		out.Display = strings.TrimSpace(envLookup(env, "DISPLAY"))
	}
	if out.XAuthority == "" {
		out.XAuthority = strings.TrimSpace(envLookup(env, "XAUTHORITY"))
	}

	if out.Display == "" || out.XAuthority == "" {
		detectedDisplay, detectedXAuthority := detectSessionX11EnvFn()
		if out.Display == "" {
			out.Display = strings.TrimSpace(detectedDisplay)
		}
		if out.XAuthority == "" {
			out.XAuthority = strings.TrimSpace(detectedXAuthority)
		}
	}

	if out.Display == "" {
		out.Display = detectDisplayFromSocketFn(X11SocketDir)
	}
	if out.Display == "" {
		return Env{}, fmt.Errorf("no X display found; set display in config (e.g. display: \":0\") or export DISPLAY")
	}

	if out.XAuthority == "" {
		home := strings.TrimSpace(envLookup(env, "HOME"))
		if home == "" {
			if detectedHome, err := os.UserHomeDir(); err == nil {
				home = detectedHome
			}
		}
		if home != "" {
			candidate := filepath.Join(home, ".Xauthority")
			if _, err := os.Stat(candidate); err == nil {
				out.XAuthority = candidate
			}
		}
	}
	return out, nil
}

// Apply resolves the display for this process and exports it so the X
// connection picks it up.
func Apply(cfg *config.Config) (Env, error) {
	e, err := Resolve(os.Environ(), cfg)
	if err != nil {
		return Env{}, err
	}
	if err := os.Setenv("DISPLAY", e.Display); err != nil {
		return Env{}, err
	}
	if e.XAuthority != "" {
		if err := os.Setenv("XAUTHORITY", e.XAuthority); err != nil {
			return Env{}, err
		}
	}
	return e, nil
}

func runCommandOutput(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// detectSessionX11Env asks logind for the current user's graphical session
// and reads DISPLAY and XAUTHORITY from its leader process.
func detectSessionX11Env() (display string, xauthority string) {
	uid := strconv.Itoa(os.Getuid())
	out, err := runCommandOutputFn("loginctl", "list-sessions", "--no-legend")
	if err != nil {
		return "", ""
	}
	for _, sessionID := range parseLoginctlSessions(out, uid) {
		d := loginctlShowSessionProp(sessionID, "Display")
		if d == "" || strings.EqualFold(d, "n/a") {
			continue
		}

		xauth := ""
		leader := loginctlShowSessionProp(sessionID, "Leader")
		if leader != "" && leader != "0" {
			if envMap, err := readProcEnviron(leader); err == nil {
				if ed := strings.TrimSpace(envMap["DISPLAY"]); ed != "" {
					d = ed
				}
				xauth = strings.TrimSpace(envMap["XAUTHORITY"])
			}
		}
		return d, xauth
	}
	return "", ""
}

func parseLoginctlSessions(output string, uid string) []string {
	var sessions []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == uid {
			sessions = append(sessions, fields[0])
		}
	}
	return sessions
}

func loginctlShowSessionProp(sessionID string, prop string) string {
	out, err := runCommandOutputFn("loginctl", "show-session", sessionID, "-p", prop, "--value")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func readProcEnviron(pid string) (map[string]string, error) {
	data, err := readFileFn(filepath.Join("/proc", pid, "environ"))
	if err != nil {
		return nil, err
	}

	env := make(map[string]string)
	for _, part := range strings.Split(string(data), "\x00") {
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env, nil
}

func detectDisplayFromSockets(dir string) string {
	entries, err := readDirFn(dir)
	if err != nil {
		return ""
	}

	var displays []int
	for _, entry := range entries {
		name := entry.Name()
		if len(name) < 2 || name[0] != 'X' {
			continue
		}
		n, err := strconv.Atoi(name[1:])
		if err != nil {
			continue
		}
		displays = append(displays, n)
	}
	if len(displays) == 0 {
		return ""
	}
	sort.Ints(displays)
	return fmt.Sprintf(":%d", displays[len(displays)-1])
}

func envLookup(env []string, key string) string {
	prefix := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			return strings.TrimPrefix(e, prefix)
		}
	}
	return ""
}
