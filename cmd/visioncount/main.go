// ABOUTME: Entry point for the visioncount console
// ABOUTME: Commands for uploads, live monitoring, analytics, and account management

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/thirdeye/visioncount/internal/analytics"
	"github.com/thirdeye/visioncount/internal/auth"
	"github.com/thirdeye/visioncount/internal/backend"
	"github.com/thirdeye/visioncount/internal/config"
	"github.com/thirdeye/visioncount/internal/console"
	"github.com/thirdeye/visioncount/internal/livefeed"
	"github.com/thirdeye/visioncount/internal/uploads"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _     _                                  _
__   _(_)___(_) ___  _ __   ___ ___  _   _ _ __ | |_
\ \ / / / __| |/ _ \| '_ \ / __/ _ \| | | | '_ \| __|
 \ V /| \__ \ | (_) | | | | (_| (_) | |_| | | | | |_
  \_/ |_|___/_|\___/|_| |_|\___\___/ \__,_|_| |_|\__|
`

// getConfigPath returns the path to the console config file.
// Priority: VISIONCOUNT_CONFIG env var > XDG_CONFIG_HOME/visioncount/console.yaml > ~/.config/visioncount/console.yaml
func getConfigPath() string {
	if envPath := os.Getenv("VISIONCOUNT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "console.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "visioncount", "console.yaml")
}

// getDataPath returns the path to the visioncount data directory.
// Priority: XDG_DATA_HOME/visioncount > ~/.local/share/visioncount
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "visioncount")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runLive(ctx)
	case "upload":
		err = runUpload(ctx, args)
	case "history":
		err = runHistory(ctx, args)
	case "stats":
		err = runStats(ctx, args)
	case "verify":
		err = runVerify(ctx, args)
	case "remove":
		err = runRemove(ctx, args)
	case "export":
		err = runExport(ctx, args)
	case "reset":
		err = runReset(ctx)
	case "camera":
		err = runCamera(ctx, args)
	case "signup":
		err = runSignUp(ctx, args)
	case "signin":
		err = runSignIn(ctx, args)
	case "signout":
		err = runSignOut(ctx)
	case "whoami":
		err = runWhoAmI(ctx)
	case "init":
		err = runInit()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, auth.ErrRedirected) {
			os.Exit(1)
		}
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: visioncount <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  run                         Follow the live count feed")
	fmt.Println("  upload <file> [--mode M]    Upload a video or image for counting")
	fmt.Println("  history [--file NAME]       Show the analytics history")
	fmt.Println("  stats [--file NAME]         Show aggregated session metrics")
	fmt.Println("  verify <id> --actual N      Record a human-verified count")
	fmt.Println("  remove <id>                 Delete one analytics record")
	fmt.Println("  export [--file NAME] [-o F] Export the history as CSV")
	fmt.Println("  reset                       Reset the counting session")
	fmt.Println("  camera on|off               Toggle the backend camera")
	fmt.Println("  signup                      Create an account")
	fmt.Println("  signin                      Sign in and store the session")
	fmt.Println("  signout                     Sign out and clear the session")
	fmt.Println("  whoami                      Show the signed-in identity")
	fmt.Println("  init                        Create a config file interactively")
	fmt.Println()
	yellow.Println("Modes:")
	fmt.Println("  static (default), scanning, conveyor, zone")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  VISIONCOUNT_CONFIG          Config file path override")
}

// env bundles everything a signed-in command needs.
type env struct {
	cfg      *config.Config
	identity *auth.Identity
	client   *backend.Client
	store    *analytics.SQLiteStore
	ctl      *console.Controller
}

func (e *env) close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

// loadConfig loads and validates the console configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(setupLogger(cfg.Logging))
	return cfg, nil
}

func newGate(cfg *config.Config) *auth.Gate {
	source := &auth.FileSessionSource{
		File: auth.NewSessionFile(sessionPath()),
	}
	if cfg.Identity.URL != "" {
		source.Provider = auth.NewProvider(cfg.Identity.URL, cfg.Identity.AnonKey)
	}
	if cfg.Identity.JWTSecret != "" {
		source.Verifier = auth.NewJWTVerifier([]byte(cfg.Identity.JWTSecret))
	}

	return auth.NewGate(source, func(view string) {
		if view == auth.ViewSignIn {
			color.Yellow("Not signed in. Run: visioncount signin")
		}
	})
}

func sessionPath() string {
	return filepath.Join(getDataPath(), "session.json")
}

// signedInEnv loads config, requires a session, and wires the controller.
func signedInEnv(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	gate := newGate(cfg)
	identity, err := gate.RequireSignedIn(ctx)
	if err != nil {
		return nil, err
	}

	store, err := analytics.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	client := backend.NewClient(cfg.Backend.BaseURL)
	poller := backend.NewPoller(client, backend.PollPolicy{
		Interval:      cfg.Polling.Interval,
		MaxAttempts:   cfg.Polling.MaxAttempts,
		BackoffFactor: cfg.Polling.BackoffFactor,
	})
	mgr := uploads.NewManager(client, poller)
	ctl := console.NewController(identity.ID, client, mgr, store)

	if err := ctl.Restore(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return &env{cfg: cfg, identity: identity, client: client, store: store, ctl: ctl}, nil
}

func runLive(ctx context.Context) error {
	e, err := signedInEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)
	green.Print("    ▶ ")
	fmt.Printf("Backend:  %s\n", e.cfg.Backend.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Live:     %s\n", e.cfg.Backend.WSURL)
	green.Print("    ▶ ")
	fmt.Printf("Identity: %s\n", e.identity.Email)
	green.Print("    ▶ ")
	fmt.Printf("Stream:   %s\n", e.client.StreamURL())
	fmt.Println()
	fmt.Printf("Session total: %d bags\n\n", e.ctl.Snapshot().SessionTotal)

	ch := livefeed.NewChannel(e.cfg.Backend.WSURL, e.identity.ID, livefeed.Options{
		ReconnectDelay: e.cfg.LiveFeed.ReconnectDelay,
		MaxRetries:     e.cfg.LiveFeed.MaxRetries,
	})

	stateEvents, _ := ch.Subscribe(ctx)
	printEvents, _ := ch.Subscribe(ctx)
	go e.ctl.Listen(ctx, stateEvents)
	go func() {
		for ev := range printEvents {
			switch ev.Kind {
			case livefeed.KindTotal:
				fmt.Printf("\rTotal: %d bags        ", ev.Count)
			case livefeed.KindFrame:
				fmt.Printf("\rIn frame: %d          ", ev.Count)
			case livefeed.KindReset:
				fmt.Printf("\rSession reset.        \n")
			}
		}
	}()

	err = ch.Run(ctx)
	fmt.Println()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runUpload(ctx context.Context, args []string) error {
	var path string
	mode := backend.ModeStatic
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--mode" || arg == "-m":
			if i+1 >= len(args) {
				return fmt.Errorf("--mode requires a value")
			}
			if !backend.ValidMode(args[i+1]) {
				return fmt.Errorf("invalid mode %q (use static, scanning, conveyor, zone)", args[i+1])
			}
			mode = backend.Mode(args[i+1])
			i++
		case strings.HasPrefix(arg, "--mode="):
			v := strings.TrimPrefix(arg, "--mode=")
			if !backend.ValidMode(v) {
				return fmt.Errorf("invalid mode %q (use static, scanning, conveyor, zone)", v)
			}
			mode = backend.Mode(v)
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		case path == "":
			path = arg
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if path == "" {
		return fmt.Errorf("usage: visioncount upload <file> [--mode M]")
	}

	e, err := signedInEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	task, err := e.ctl.SubmitFile(ctx, path, mode)
	if err != nil {
		return err
	}
	if task.Status == uploads.StatusFailed {
		return fmt.Errorf("upload failed: %s", task.Error)
	}

	fmt.Printf("Uploaded %s (mode: %s), waiting for result...\n", task.FileName, mode)
	e.ctl.WaitForUploads()

	final := e.ctl.Uploads()[0]
	switch final.Status {
	case uploads.StatusCompleted:
		green := color.New(color.FgGreen)
		green.Printf("  ✓ Count: %d\n", *final.ResultCount)
		if final.MediaURL != "" {
			label := "Annotated video"
			if final.IsImage {
				label = "Annotated image"
			}
			fmt.Printf("  %s: %s\n", label, e.client.MediaURL(final.MediaURL))
		}
		fmt.Printf("  Session total: %d bags\n", e.ctl.Snapshot().SessionTotal)
	case uploads.StatusFailed:
		return fmt.Errorf("processing failed: %s", final.Error)
	case uploads.StatusTimedOut:
		return fmt.Errorf("timed out waiting for task %s", final.BackendID)
	default:
		return fmt.Errorf("task %s still %s; the backend may be unreachable", final.BackendID, final.Status)
	}
	return nil
}

// parseFilter handles the shared --file flag of the analytics commands.
func parseFilter(args []string) (filter string, rest []string, err error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--file" || arg == "-f":
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--file requires a value")
			}
			filter = args[i+1]
			i++
		case strings.HasPrefix(arg, "--file="):
			filter = strings.TrimPrefix(arg, "--file=")
		default:
			rest = append(rest, arg)
		}
	}
	return filter, rest, nil
}

func runHistory(ctx context.Context, args []string) error {
	filter, rest, err := parseFilter(args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	e, err := signedInEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	records, err := e.ctl.History(ctx, filter)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Analytics History")
	cyan.Println("  -----------------")

	if len(records) == 0 {
		fmt.Println("  (no records)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tTIME\tFILE\tCOUNT\tACTUAL\tSTATUS")
	fmt.Fprintln(w, "  --\t----\t----\t-----\t------\t------")
	for _, r := range records {
		actual := "-"
		if r.ActualCount != nil {
			actual = strconv.Itoa(*r.ActualCount)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%s\t%s\n", truncate(r.ID, 8), r.Time, r.Filename, r.Count, actual, r.Status)
	}
	w.Flush()
	fmt.Println()
	return nil
}

func runStats(ctx context.Context, args []string) error {
	filter, rest, err := parseFilter(args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	e, err := signedInEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	summary, err := e.ctl.Stats(ctx, filter)
	if err != nil {
		return err
	}
	total, err := e.store.Total(ctx, e.identity.ID)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Session Metrics")
	cyan.Println("  ---------------")
	fmt.Printf("  Total uploads:    %d\n", summary.TotalUploads)
	fmt.Printf("  Total bags (AI):  %d\n", summary.TotalBags)
	fmt.Printf("  Avg bags/upload:  %d\n", summary.AvgBags)
	fmt.Printf("  Cumulative total: %d\n", total)
	if summary.TotalActual > 0 {
		fmt.Printf("  Verified actual:  %d\n", summary.TotalActual)
		fmt.Printf("  Success rate:     %d%%\n", summary.SuccessRate())
	} else {
		fmt.Printf("  Success rate:     n/a (no verified counts)\n")
	}
	if summary.PeakHourValid {
		fmt.Printf("  Peak hour:        %02d:00\n", summary.PeakHour)
	} else {
		fmt.Printf("  Peak hour:        n/a\n")
	}
	fmt.Println()
	return nil
}

// parseRef reads a record reference: a positional ID, or --time plus --file
// for records persisted before IDs existed.
func parseRef(args []string) (analytics.Ref, []string, error) {
	var ref analytics.Ref
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--time":
			if i+1 >= len(args) {
				return ref, nil, fmt.Errorf("--time requires a value")
			}
			ref.Time = args[i+1]
			i++
		case arg == "--file" || arg == "-f":
			if i+1 >= len(args) {
				return ref, nil, fmt.Errorf("--file requires a value")
			}
			ref.Filename = args[i+1]
			i++
		case strings.HasPrefix(arg, "-"):
			rest = append(rest, arg, "")
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				rest[len(rest)-1] = args[i+1]
				i++
			}
		case ref.ID == "":
			ref.ID = arg
		default:
			return ref, nil, fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if ref.ID == "" && (ref.Time == "" || ref.Filename == "") {
		return ref, nil, fmt.Errorf("a record ID, or --time with --file, is required")
	}
	return ref, rest, nil
}

func runVerify(ctx context.Context, args []string) error {
	ref, rest, err := parseRef(args)
	if err != nil {
		return err
	}

	actual := -1
	for i := 0; i < len(rest); i += 2 {
		switch rest[i] {
		case "--actual", "-a":
			if rest[i+1] == "" {
				return fmt.Errorf("--actual requires a value")
			}
			actual, err = strconv.Atoi(rest[i+1])
			if err != nil {
				return fmt.Errorf("invalid actual count %q", rest[i+1])
			}
		default:
			return fmt.Errorf("unknown flag: %s", rest[i])
		}
	}
	if actual < 0 {
		return fmt.Errorf("--actual N is required")
	}

	e, err := signedInEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.ctl.Verify(ctx, ref, actual); err != nil {
		return err
	}
	color.Green("  ✓ Verified with actual count %d\n", actual)
	return nil
}

func runRemove(ctx context.Context, args []string) error {
	ref, rest, err := parseRef(args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unknown flag: %s", rest[0])
	}

	e, err := signedInEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.ctl.RemoveRecord(ctx, ref); err != nil {
		return err
	}
	color.Green("  ✓ Record removed\n")
	return nil
}

func runExport(ctx context.Context, args []string) error {
	filter, rest, err := parseFilter(args)
	if err != nil {
		return err
	}

	out := analytics.ExportFilename
	for i := 0; i < len(rest); i++ {
		switch {
		case rest[i] == "-o" || rest[i] == "--out":
			if i+1 >= len(rest) {
				return fmt.Errorf("--out requires a value")
			}
			out = rest[i+1]
			i++
		case strings.HasPrefix(rest[i], "--out="):
			out = strings.TrimPrefix(rest[i], "--out=")
		default:
			return fmt.Errorf("unexpected argument: %s", rest[i])
		}
	}

	e, err := signedInEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	if err := e.ctl.Export(ctx, f, filter); err != nil {
		return err
	}
	color.Green("  ✓ Exported to %s\n", out)
	return nil
}

func runReset(ctx context.Context) error {
	e, err := signedInEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	reader := bufio.NewReader(os.Stdin)
	answer := prompt(reader, "Reset the counting session and clear all analytics?", "no")
	if strings.ToLower(answer) != "yes" && strings.ToLower(answer) != "y" {
		fmt.Println("Aborted.")
		return nil
	}

	if err := e.ctl.ResetSession(ctx); err != nil {
		return err
	}
	color.Green("  ✓ Session reset\n")
	return nil
}

func runCamera(ctx context.Context, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("usage: visioncount camera on|off")
	}

	e, err := signedInEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	if args[0] == "on" {
		e.client.CameraOn(ctx)
		fmt.Printf("Camera requested on. Stream: %s\n", e.client.StreamURL())
	} else {
		e.client.CameraOff(ctx)
		fmt.Println("Camera requested off.")
	}
	return nil
}

// parseCredentials reads --email, --password, and --name flags, prompting for
// whichever is missing.
func parseCredentials(args []string, wantName bool) (email, password, name string, err error) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--email", "-e":
			if i+1 >= len(args) {
				return "", "", "", fmt.Errorf("--email requires a value")
			}
			email = args[i+1]
			i++
		case "--password", "-p":
			if i+1 >= len(args) {
				return "", "", "", fmt.Errorf("--password requires a value")
			}
			password = args[i+1]
			i++
		case "--name", "-n":
			if i+1 >= len(args) {
				return "", "", "", fmt.Errorf("--name requires a value")
			}
			name = args[i+1]
			i++
		default:
			return "", "", "", fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	reader := bufio.NewReader(os.Stdin)
	if email == "" {
		email = prompt(reader, "Email", "")
	}
	if password == "" {
		password = prompt(reader, "Password", "")
	}
	if wantName && name == "" {
		name = prompt(reader, "Full name", "")
	}
	if email == "" || password == "" {
		return "", "", "", fmt.Errorf("email and password are required")
	}
	return email, password, name, nil
}

func runSignUp(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Identity.URL == "" {
		return fmt.Errorf("identity.url is not configured")
	}

	gate := newGate(cfg)
	if err := gate.RequireSignedOut(ctx); err != nil {
		if errors.Is(err, auth.ErrRedirected) {
			return fmt.Errorf("already signed in; run visioncount signout first")
		}
		return err
	}

	email, password, name, err := parseCredentials(args, true)
	if err != nil {
		return err
	}

	provider := auth.NewProvider(cfg.Identity.URL, cfg.Identity.AnonKey)
	sess, err := provider.SignUp(ctx, email, password, name)
	if err != nil {
		return err
	}

	if sess.AccessToken == "" {
		// Email confirmation flow: no session until the link is clicked.
		color.Green("  ✓ Account created. Check your email to confirm, then sign in.\n")
		return nil
	}

	if err := auth.NewSessionFile(sessionPath()).Save(sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	color.Green("  ✓ Signed up as %s\n", sess.Identity.Email)
	return nil
}

func runSignIn(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Identity.URL == "" {
		return fmt.Errorf("identity.url is not configured")
	}

	gate := newGate(cfg)
	if err := gate.RequireSignedOut(ctx); err != nil {
		if errors.Is(err, auth.ErrRedirected) {
			return fmt.Errorf("already signed in; run visioncount signout first")
		}
		return err
	}

	email, password, _, err := parseCredentials(args, false)
	if err != nil {
		return err
	}

	provider := auth.NewProvider(cfg.Identity.URL, cfg.Identity.AnonKey)
	sess, err := provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}

	if err := auth.NewSessionFile(sessionPath()).Save(sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	color.Green("  ✓ Signed in as %s\n", sess.Identity.Email)
	return nil
}

func runSignOut(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sessFile := auth.NewSessionFile(sessionPath())
	sess, err := sessFile.Load()
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			fmt.Println("Not signed in.")
			return nil
		}
		return err
	}

	// Best effort: the local session is cleared even when the provider call
	// fails, matching the dashboard's sign-out behavior.
	if cfg.Identity.URL != "" {
		provider := auth.NewProvider(cfg.Identity.URL, cfg.Identity.AnonKey)
		if perr := provider.SignOut(ctx, sess.AccessToken); perr != nil {
			slog.Warn("provider sign-out failed", "error", perr)
		}
	}

	if err := sessFile.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	color.Green("  ✓ Signed out\n")
	return nil
}

func runWhoAmI(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	identity, err := newGate(cfg).RequireSignedIn(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Identity")
	cyan.Println("  --------")
	fmt.Printf("  ID:    %s\n", identity.ID)
	fmt.Printf("  Email: %s\n", identity.Email)
	if identity.FullName != "" {
		fmt.Printf("  Name:  %s\n", identity.FullName)
	}
	fmt.Println()
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("visioncount configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "console.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Backend Configuration ---")
	baseURL := prompt(reader, "Counting backend URL", "http://localhost:8000")

	fmt.Println("\n--- Identity Configuration ---")
	identityURL := prompt(reader, "Identity provider URL (leave empty to skip auth)", "")
	var anonKey string
	if identityURL != "" {
		anonKey = prompt(reader, "Anon API key", "")
	}

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# visioncount configuration\n")
	cfg.WriteString("# Generated by visioncount init\n\n")

	cfg.WriteString("backend:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	cfg.WriteString("\n")

	if identityURL != "" {
		cfg.WriteString("identity:\n")
		cfg.WriteString(fmt.Sprintf("  url: \"%s\"\n", identityURL))
		cfg.WriteString(fmt.Sprintf("  anon_key: \"%s\"\n", anonKey))
		cfg.WriteString("\n")
	}

	cfg.WriteString("polling:\n")
	cfg.WriteString("  interval: \"2s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("livefeed:\n")
	cfg.WriteString("  reconnect_delay: \"3s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo get started:")
	fmt.Printf("  visioncount signin\n")
	fmt.Printf("  visioncount run\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
