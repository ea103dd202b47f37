package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/deskveil/internal/config"
	"github.com/1broseidon/deskveil/internal/daemon"
	"github.com/1broseidon/deskveil/internal/displayenv"
	"github.com/1broseidon/deskveil/internal/ipc"
	"github.com/1broseidon/deskveil/internal/overlay"
	"github.com/1broseidon/deskveil/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		if len(os.Args) > 2 && (os.Args[2] == "help" || os.Args[2] == "-h" || os.Args[2] == "--help") {
			fmt.Fprintln(os.Stdout, "Usage: deskveil daemon")
			os.Exit(0)
		}
		if len(os.Args) > 2 {
			fmt.Fprintln(os.Stderr, "daemon takes no arguments")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Usage: deskveil daemon")
			os.Exit(2)
		}
		runDaemon()
	case "toggle":
		os.Exit(runToggle(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "refresh":
		os.Exit(runRefresh(os.Args[2:]))
	case "interval":
		os.Exit(runInterval(os.Args[2:]))
	case "mode":
		os.Exit(runMode(os.Args[2:]))
	case "preview":
		os.Exit(runPreview(os.Args[2:]))
	case "surfaces", "list":
		os.Exit(runSurfaces(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: deskveil <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the deskveil daemon (foreground)")
	fmt.Fprintln(w, "  toggle              Hide or show desktop icons")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  refresh             Re-scan surfaces and recapture overlays")
	fmt.Fprintln(w, "  interval <d>        Set the refresh interval (e.g. 30s, never)")
	fmt.Fprintln(w, "  mode <image|color>  Set overlay content mode")
	fmt.Fprintln(w, "  preview             Show the overlay thumbnail under a point")
	fmt.Fprintln(w, "  surfaces            List tracked surfaces and fillers")
	fmt.Fprintln(w, "  reload              Ask the daemon to re-read its config file")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open interactive control panel")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'deskveil <command> --help' for command-specific options.")
}

// parseNoArgs handles commands that accept no flags or arguments.
func parseNoArgs(name, usage string, args []string) (int, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: deskveil %s\n", name)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, usage)
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", name)
		fs.Usage()
		return 2, false
	}
	return 0, true
}

func printStatus(status *ipc.StatusData) {
	fmt.Printf("daemon_running:   %v\n", status.DaemonRunning)
	fmt.Printf("hidden:           %v\n", status.Hidden)
	fmt.Printf("surface_count:    %d\n", status.SurfaceCount)
	fmt.Printf("filler_count:     %d\n", status.FillerCount)
	fmt.Printf("refresh_interval: %s\n", status.RefreshInterval)
	fmt.Printf("uptime_seconds:   %d\n", status.UptimeSeconds)
}

func runToggle(args []string) int {
	if code, ok := parseNoArgs("toggle", "Hide desktop icons if visible, show them if hidden.", args); !ok {
		return code
	}
	status, err := ipc.NewClient().Toggle()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if status.Hidden {
		fmt.Println("icons hidden")
	} else {
		fmt.Println("icons visible")
	}
	return 0
}

func runStatus(args []string) int {
	if code, ok := parseNoArgs("status", "Show daemon status via IPC.", args); !ok {
		return code
	}
	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	printStatus(status)
	return 0
}

func runRefresh(args []string) int {
	if code, ok := parseNoArgs("refresh", "Re-scan desktop surfaces and recapture overlay content.", args); !ok {
		return code
	}
	if err := ipc.NewClient().Refresh(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runInterval(args []string) int {
	fs := flag.NewFlagSet("interval", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	save := fs.Bool("save", false, "Also write the interval to the config file")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: deskveil interval [--save] <duration|never>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Set how often overlays are recaptured while icons are hidden.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	d, err := config.ParseInterval(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if err := ipc.NewClient().SetRefreshInterval(fs.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if !*save {
			return 1
		}
		fmt.Fprintln(os.Stderr, "daemon not updated; saving to config only")
	}

	if *save {
		if err := updateConfigFile(func(cfg *config.Config) {
			applyInterval(cfg, d)
		}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	fmt.Printf("refresh_interval: %s\n", config.FormatInterval(d))
	return 0
}

func runMode(args []string) int {
	fs := flag.NewFlagSet("mode", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	target := fs.String("target", "all", "all, desktop:<index> or surface:<window id>")
	color := fs.String("color", "", "Fill color for color mode (#rrggbb)")
	save := fs.Bool("save", false, "Also write the mode to the config file")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: deskveil mode [--target T] [--color #rrggbb] [--save] <image|color>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Choose whether overlays show the captured wallpaper or a solid color.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	mode := fs.Arg(0)

	t, err := ipc.ParseTarget(*target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if _, err := ipc.ParseMode(mode, *color); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if err := ipc.NewClient().SetContentMode(*target, mode, *color); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if !*save {
			return 1
		}
		fmt.Fprintln(os.Stderr, "daemon not updated; saving to config only")
	}

	if *save {
		var applyErr error
		if err := updateConfigFile(func(cfg *config.Config) {
			applyErr = applyMode(cfg, *target, mode, *color)
		}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if applyErr != nil {
			fmt.Fprintln(os.Stderr, applyErr)
			return 1
		}
	}
	fmt.Printf("content_mode: %s (%s)\n", mode, t.String())
	return 0
}

func runPreview(args []string) int {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	x := fs.Int("x", 0, "Root X coordinate")
	y := fs.Int("y", 0, "Root Y coordinate")
	out := fs.String("out", "", "Write the PNG thumbnail to this file")
	asJSON := fs.Bool("json", false, "Print the raw preview response as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: deskveil preview [--x N] [--y N] [--out FILE] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Describe the overlay covering the screen under a point.")
		fmt.Fprintln(os.Stderr, "When stdout is not a terminal the PNG thumbnail is written to it.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	data, err := ipc.NewClient().Preview(*x, *y)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	var pngBytes []byte
	if data.PNG != "" {
		pngBytes, err = base64.StdEncoding.DecodeString(data.PNG)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid thumbnail: %v\n", err)
			return 1
		}
	}

	switch {
	case *out != "":
		if pngBytes == nil {
			fmt.Fprintln(os.Stderr, "no thumbnail available")
			return 1
		}
		if err := os.WriteFile(*out, pngBytes, 0644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	case pngBytes != nil && !term.IsTerminal(int(os.Stdout.Fd())):
		if _, err := os.Stdout.Write(pngBytes); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	if !data.Found {
		fmt.Println("no screen under point")
		return 0
	}
	fmt.Printf("screen:     %s\n", data.Screen)
	if data.ColorMode {
		fmt.Printf("content:    color %s\n", data.Color)
	} else {
		fmt.Println("content:    image")
	}
	if pngBytes != nil {
		fmt.Printf("thumbnail:  %dx%d\n", data.Width, data.Height)
	}
	return 0
}

func runSurfaces(args []string) int {
	fs := flag.NewFlagSet("surfaces", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	data, err := ipc.NewClient().ListSurfaces()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	fmt.Printf("hidden: %v  refresh_interval: %s\n", data.Hidden, data.RefreshInterval)
	for _, s := range data.Surfaces {
		fmt.Printf("surface 0x%x  overlay 0x%x  %-20s desktop=%d state=%s layer=%s on_screen=%v mode=%s\n",
			s.ID, s.Overlay, s.Geometry, s.Desktop, s.State, s.Layer, s.OnScreen, s.Mode)
	}
	for _, f := range data.Fillers {
		fmt.Printf("filler  overlay 0x%x  %-20s active=%v layer=%s color=%s\n",
			f.Overlay, f.Geometry, f.Active, f.Layer, f.Color)
	}
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  deskveil config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  deskveil config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  deskveil config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/deskveil/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/deskveil/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printEffective := fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			_ = printEffective // default
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			if res.File != "" {
				fmt.Printf("# file: %s\n", res.File)
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/deskveil/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func runReload(args []string) int {
	if code, ok := parseNoArgs("reload", "Send SIGHUP to the running daemon so it re-reads its config.", args); !ok {
		return code
	}
	if _, err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	pid, err := daemon.ReadPID()
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemon pid not found: %v\n", err)
		return 1
	}
	if err := syscall.Kill(pid, syscall.SIGHUP); err != nil {
		fmt.Fprintf(os.Stderr, "failed to signal daemon (pid %d): %v\n", pid, err)
		return 1
	}
	fmt.Println("reload requested")
	return 0
}

func runTUI(args []string) int {
	if code, ok := parseNoArgs("tui", "Interactive control panel for a running daemon.", args); !ok {
		return code
	}
	if err := tui.Run(ipc.NewClient()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}

// updateConfigFile loads the user's config, applies fn and writes it back to
// the file it came from (or the default location).
func updateConfigFile(fn func(cfg *config.Config)) error {
	res, err := config.LoadWithSources()
	if err != nil {
		return err
	}
	fn(res.Config)
	if res.File == "" {
		return res.Config.Save()
	}
	return res.Config.SaveTo(res.File)
}

func applyInterval(cfg *config.Config, d time.Duration) {
	cfg.RefreshInterval = config.Interval(d)
}

// applyMode records a mode change the same way the daemon applies it.
// Surface targets only live for the daemon's lifetime and are not persisted.
func applyMode(cfg *config.Config, target, mode, color string) error {
	t, err := ipc.ParseTarget(target)
	if err != nil {
		return err
	}
	m := config.ContentMode{Mode: strings.ToLower(strings.TrimSpace(mode)), Color: color}
	if m.Mode == "" {
		m.Mode = config.ModeImage
	}
	switch t.Kind {
	case overlay.TargetAll:
		cfg.ContentMode = m
		cfg.SpaceModes = map[int]config.ContentMode{}
	case overlay.TargetDesktop:
		if cfg.SpaceModes == nil {
			cfg.SpaceModes = map[int]config.ContentMode{}
		}
		cfg.SpaceModes[t.Desktop] = m
	default:
		return fmt.Errorf("surface targets cannot be saved to the config file")
	}
	return nil
}

func runDaemon() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	env, err := displayenv.Apply(cfg)
	if err != nil {
		log.Fatalf("Failed to resolve display: %v", err)
	}
	logger.Info("display resolved", "display", env.Display, "xauthority", env.XAuthority)

	d, err := daemon.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start daemon: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("received SIGHUP, reloading config")
				newCfg, err := config.Load()
				if err != nil {
					logger.Error("config reload failed", "error", err)
					continue
				}
				if err := d.Reload(newCfg); err != nil {
					logger.Error("config reload failed", "error", err)
				}
			}
		}
	}()

	if err := d.Run(ctx); err != nil {
		log.Fatalf("deskveil daemon exited: %v", err)
	}
	logger.Info("deskveil daemon stopped")
}
