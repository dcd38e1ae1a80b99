package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/fyshare/fyshare/api"
	"github.com/fyshare/fyshare/internal/audit"
	"github.com/fyshare/fyshare/internal/config"
	"github.com/fyshare/fyshare/internal/util"
	"github.com/fyshare/fyshare/server"
	"github.com/fyshare/fyshare/storage"
	bboltstorage "github.com/fyshare/fyshare/storage/bbolt"
	"github.com/fyshare/fyshare/vault"
	"github.com/fyshare/fyshare/web"
)

// Random ports are drawn from [minRandomPort, maxRandomPort).
const (
	minRandomPort = 1500
	maxRandomPort = 9500
	portBindTries = 20
)

var (
	serveRoot string
	servePort int
	serveQR   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Share a directory until idle, interrupted or under attack",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Directory to share (overrides root_directory)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on, 0 for random (overrides port)")
	serveCmd.Flags().BoolVar(&serveQR, "qr", false, "Print the share URL as a QR code")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	root, err := storage.NewRoot(cfg.RootDirectory)
	if err != nil {
		return fmt.Errorf("opening root directory: %w", err)
	}
	working := []string{cfg.JournalPath, cfg.Logging.File}
	if _, err := os.Stat(configPath); err == nil {
		working = append(working, configPath)
	}
	if err := checkWorkingData(root, working...); err != nil {
		return err
	}

	var assetRoot *storage.Root
	if cfg.StaticDirectory != "" {
		if assetRoot, err = storage.NewRoot(cfg.StaticDirectory); err != nil {
			return fmt.Errorf("opening static directory: %w", err)
		}
	}

	var journal storage.Journal
	if cfg.JournalPath != "" {
		j, err := bboltstorage.NewJournalFromFile(cfg.JournalPath, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return fmt.Errorf("opening event journal: %w", err)
		}
		defer j.Close()
		journal = j
	}
	al := audit.New(logger, journal)

	ln, err := listen(cfg.Port)
	if err != nil {
		return err
	}
	shareURL := fmt.Sprintf("http://%s:%d/", localIP(), ln.Addr().(*net.TCPAddr).Port)

	v, err := vault.New(vault.WithAudit(al))
	if err != nil {
		ln.Close()
		return fmt.Errorf("issuing passcode: %w", err)
	}
	defer v.Destroy()

	out := cmd.OutOrStdout()
	show := func(message string) {
		code, err := v.CurrentPasscode()
		if err != nil {
			logger.Error("reading passcode", "error", err)
			return
		}
		printCredentials(out, credentialBanner{
			Root:        root.Path(),
			URL:         shareURL,
			Passcode:    code,
			MaxUsers:    cfg.MaxUsers,
			IdleTimeout: cfg.IdleTimeout(),
			Message:     message,
			QR:          serveQR,
		})
	}
	printBanner(out)
	show("")
	v.OnRotate(func(rot vault.Rotation) {
		show(rotationMessage(rot.Reason))
	})

	renderer, err := web.NewRenderer()
	if err != nil {
		ln.Close()
		return fmt.Errorf("loading templates: %w", err)
	}
	prefixes, err := cfg.TrustedPrefixes()
	if err != nil {
		ln.Close()
		return err
	}
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithAudit(al),
		api.WithTrustedProxies(prefixes),
	}
	if assetRoot != nil {
		opts = append(opts, api.WithAssetRoot(assetRoot))
	}
	a := api.New(root, v, renderer, api.PolicyFromConfig(cfg), opts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", a.Router())

	loop := server.New(r, ln, a, v,
		server.WithRefreshInterval(cfg.RefreshInterval()),
		server.WithIdleTimeout(cfg.IdleTimeout()),
		server.WithRotationInterval(cfg.CleanupTimeout()),
		server.WithAudit(al),
		server.WithLogger(logger),
	)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("serving", "root", root.Path(), "addr", loop.Addr().String(), "max_users", cfg.MaxUsers)
	reason, err := loop.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nServer stopped: %s\n", reason)
	return nil
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("root") {
		root, err := config.ExpandPath(serveRoot)
		if err != nil {
			return err
		}
		cfg.RootDirectory = root
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return nil
}

// checkWorkingData refuses a root that would expose the server's own files.
func checkWorkingData(root *storage.Root, paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
			abs = filepath.Join(dir, filepath.Base(abs))
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		if root.Contains(abs) {
			return fmt.Errorf("root directory %s contains %s; share a directory that does not hold fyshare's own files", root.Path(), abs)
		}
	}
	return nil
}

// listen binds port on all interfaces. Port 0 picks a random port in
// [minRandomPort, maxRandomPort), retrying on collisions.
func listen(port int) (net.Listener, error) {
	if port != 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return nil, fmt.Errorf("binding port %d: %w", port, err)
		}
		return ln, nil
	}

	var lastErr error
	for range portBindTries {
		p, err := util.RandomRange(minRandomPort, maxRandomPort)
		if err != nil {
			return nil, err
		}
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err == nil {
			return ln, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no free port in [%d, %d): %w", minRandomPort, maxRandomPort, lastErr)
}

func rotationMessage(reason string) string {
	switch reason {
	case vault.ReasonExpired:
		return "Passcode expired. A new one has been issued."
	case vault.ReasonFailures:
		return "Too many failed login attempts. The passcode has been changed."
	default:
		return "Passcode rotated (" + reason + ")."
	}
}
