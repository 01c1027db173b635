// Command server runs the sending side of a transfer: it loads an
// identity keypair and allow-list, plans and publishes every file under
// a serve directory, and answers Ticket-driven GetChunk requests over
// UDP until it is signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fountainlink/transfer/internal/bus"
	"github.com/fountainlink/transfer/internal/chunkindex"
	"github.com/fountainlink/transfer/internal/chunkplan"
	"github.com/fountainlink/transfer/internal/config"
	"github.com/fountainlink/transfer/internal/keyring"
	"github.com/fountainlink/transfer/internal/observability"
	"github.com/fountainlink/transfer/internal/planfile"
	"github.com/fountainlink/transfer/internal/sendsocket"
	"github.com/fountainlink/transfer/internal/udpsocket"
	"github.com/google/uuid"
	"golang.org/x/term"
)

func main() {
	listenAddr := flag.String("listen", ":9450", "UDP address to listen on")
	observAddr := flag.String("observ-addr", "127.0.0.1:9451", "metrics and health HTTP address")
	serveDir := flag.String("serve-dir", "", "directory of files to serve")
	plansDir := flag.String("plans-dir", "", "directory to write .plan.toml files to (default: serve-dir)")
	keysDir := flag.String("keys-dir", keyring.DefaultKeystorePath(), "identity key storage directory")
	allowList := flag.String("allow-list", "", "path to a hex-encoded client public key allow-list")
	noPassphrase := flag.Bool("no-passphrase", false, "identity key is stored without a passphrase")
	flag.Parse()

	runID := uuid.NewString()
	logger := observability.NewLogger("fountainlink-server", "1.0.0", os.Stdout).WithRun(runID)
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker("1.0.0")

	if shutdown, err := observability.InitTracing(context.Background(), "fountainlink-server"); err == nil {
		defer shutdown(context.Background())
	}

	if *serveDir == "" {
		logger.Fatal(fmt.Errorf("missing flag"), "-serve-dir is required")
	}
	if *plansDir == "" {
		*plansDir = *serveDir
	}

	keys := keyring.New()
	if err := loadServerIdentity(keys, *keysDir, *noPassphrase); err != nil {
		logger.Fatal(err, "load server identity")
	}
	if *allowList != "" {
		if err := keys.LoadAllowList(*allowList); err != nil {
			logger.Fatal(err, "load allow list")
		}
	} else {
		logger.Warn("no -allow-list given; no client Ticket will verify")
	}

	idx := chunkindex.New()
	manifest, err := publishServeDir(*serveDir, *plansDir, idx)
	if err != nil {
		logger.Fatal(err, "publish serve directory")
	}
	idx.Freeze()
	var totalBytes uint64
	for _, cfg := range manifest {
		totalBytes += cfg.TotalLength
	}
	logger.Info(fmt.Sprintf("published %d file(s) from %s, %s total", len(manifest), *serveDir, humanize.Bytes(totalBytes)))

	sock, err := udpsocket.ListenUDP(*listenAddr)
	if err != nil {
		logger.Fatal(err, "listen UDP")
	}
	defer sock.Close()
	logger.Info("listening on " + sock.LocalAddr())

	health.RegisterCheck("udp_listener", observability.UDPSocketCheck(sock.LocalAddr(), true))
	health.RegisterCheck("keyring", observability.KeyringCheck(keys.HasPrivate()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.New()
	cfg := config.DefaultConfig()
	if _, err := sendsocket.Spawn(ctx, sock, b, idx, keys, cfg, logger, metrics); err != nil {
		logger.Fatal(err, "spawn sending socket")
	}

	go serveObservability(*observAddr, metrics, health, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	cancel()
}

// loadServerIdentity loads identity.key from keysDir, prompting for a
// passphrase unless noPassphrase is set.
func loadServerIdentity(keys *keyring.KeyRing, keysDir string, noPassphrase bool) error {
	passphrase := ""
	if !noPassphrase {
		fmt.Print("identity passphrase: ")
		pw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read passphrase: %w", err)
		}
		passphrase = string(pw)
	}

	priv, err := keyring.LoadIdentityKey(filepath.Join(keysDir, "identity.key"), passphrase)
	if err != nil {
		return fmt.Errorf("load identity key: %w", err)
	}
	return keys.SetPrivate(priv)
}

// publishServeDir plans and hashes every regular file directly under dir,
// writes its plan to plansDir, and registers it in idx under its base
// name as file key.
func publishServeDir(dir, plansDir string, idx *chunkindex.ChunkIndex) (planfile.Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read serve dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(plansDir, 0755); err != nil {
		return nil, fmt.Errorf("create plans dir %s: %w", plansDir, err)
	}

	manifest := make(planfile.Manifest)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		cfg, err := chunkplan.Build(path)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", path, err)
		}
		fileKey := entry.Name()
		if err := idx.RegisterFile(fileKey, path, cfg); err != nil {
			return nil, fmt.Errorf("register %s: %w", fileKey, err)
		}
		manifest[fileKey] = cfg
	}
	if err := planfile.WriteManifest(plansDir, manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return manifest, nil
}

func serveObservability(addr string, metrics *observability.Metrics, health *observability.HealthChecker, logger *observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", health.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("observability server listening on " + addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(err, "observability server error")
	}
}
