// Command client fetches a file described by a .plan.toml plan from a
// server, writing decoded chunks into a sparse destination file as they
// complete and resuming past whatever a prior run already finished.
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
	"github.com/fountainlink/transfer/internal/chunkplan"
	"github.com/fountainlink/transfer/internal/config"
	"github.com/fountainlink/transfer/internal/decoder"
	"github.com/fountainlink/transfer/internal/fileio"
	"github.com/fountainlink/transfer/internal/keyring"
	"github.com/fountainlink/transfer/internal/observability"
	"github.com/fountainlink/transfer/internal/planfile"
	"github.com/fountainlink/transfer/internal/recvsocket"
	"github.com/fountainlink/transfer/internal/resumeledger"
	"github.com/fountainlink/transfer/internal/udpsocket"
	"github.com/google/uuid"
	"golang.org/x/term"
)

func main() {
	serverAddr := flag.String("server", "", "server UDP address, host:port")
	bindAddr := flag.String("bind", ":0", "local UDP address to bind to")
	observAddr := flag.String("observ-addr", "127.0.0.1:9452", "metrics and health HTTP address")
	planPath := flag.String("plan", "", "path to the .plan.toml file describing the transfer")
	output := flag.String("output", "", "destination path for the reassembled file")
	resumeDB := flag.String("resume-db", "", "resume ledger path (default: <output>.resume.db)")
	keysDir := flag.String("keys-dir", keyring.DefaultKeystorePath(), "identity key storage directory")
	noPassphrase := flag.Bool("no-passphrase", false, "identity key is stored without a passphrase")
	flag.Parse()

	runID := uuid.NewString()
	logger := observability.NewLogger("fountainlink-client", "1.0.0", os.Stdout).WithRun(runID)
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker("1.0.0")

	if shutdown, err := observability.InitTracing(context.Background(), "fountainlink-client"); err == nil {
		defer shutdown(context.Background())
	}

	if *serverAddr == "" || *planPath == "" || *output == "" {
		logger.Fatal(fmt.Errorf("missing flags"), "-server, -plan and -output are required")
	}
	if *resumeDB == "" {
		*resumeDB = *output + ".resume.db"
	}

	cfg, err := planfile.Read(*planPath)
	if err != nil {
		logger.Fatal(err, "read plan file")
	}
	fileKey := cfg.FileName
	logger = logger.WithFile(fileKey, cfg.TotalLength)
	logger.Info(fmt.Sprintf("fetching %s (%s, %d chunks) from %s", fileKey, humanize.Bytes(cfg.TotalLength), len(cfg.Chunks), *serverAddr))

	keys := keyring.New()
	if err := loadClientIdentity(keys, *keysDir, *noPassphrase); err != nil {
		logger.Fatal(err, "load client identity")
	}

	ledger, err := resumeledger.Open(*resumeDB)
	if err != nil {
		logger.Fatal(err, "open resume ledger")
	}
	defer ledger.Close()
	health.RegisterCheck("resume_ledger", observability.ResumeLedgerCheck(*resumeDB, true))

	if err := ensureDestinationFile(*output, cfg.TotalLength); err != nil {
		logger.Fatal(err, "create destination file")
	}

	completed, err := ledger.CompletedChunks(fileKey)
	if err != nil {
		logger.Fatal(err, "read completed chunks")
	}

	sock, err := udpsocket.ListenUDP(*bindAddr)
	if err != nil {
		logger.Fatal(err, "listen UDP")
	}
	defer sock.Close()
	health.RegisterCheck("udp_listener", observability.UDPSocketCheck(sock.LocalAddr(), true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.New()
	engineCfg := config.DefaultConfig()
	recv, err := recvsocket.Spawn(ctx, sock, *serverAddr, b, keys, engineCfg, logger, metrics)
	if err != nil {
		logger.Fatal(err, "spawn receiving socket")
	}

	go serveObservability(*observAddr, metrics, health, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	start := time.Now()
	done := runTransfer(ctx, recv, cfg, ledger, fileKey, *output, completed, logger, metrics, sig)
	cancel()
	if !done {
		logger.Warn("transfer interrupted before completion")
		return
	}

	if err := chunkplan.VerifyComplete(*output, cfg); err != nil {
		logger.Error(err, "completed transfer failed whole-file verification")
		os.Exit(1)
	}
	logger.TransferCompleted(fileKey, cfg.TotalLength, time.Since(start), true)
}

// loadClientIdentity loads identity.key from keysDir, prompting for a
// passphrase unless noPassphrase is set.
func loadClientIdentity(keys *keyring.KeyRing, keysDir string, noPassphrase bool) error {
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

func ensureDestinationFile(path string, totalLength uint64) error {
	if info, err := os.Stat(path); err == nil {
		if uint64(info.Size()) == totalLength {
			return nil
		}
	}
	return fileio.CreateSparseFile(path, totalLength)
}

type chunkResult struct {
	chunkID uint32
	result  decoder.Result
}

// runTransfer starts every not-yet-completed chunk's decoder, writes each
// one to disk and the resume ledger as it finishes, and returns once
// every chunk is accounted for or sig fires first.
func runTransfer(
	ctx context.Context,
	recv *recvsocket.Actor,
	cfg *chunkplan.FileConfig,
	ledger *resumeledger.Ledger,
	fileKey, outputPath string,
	completed map[uint32]struct{},
	logger *observability.Logger,
	metrics *observability.Metrics,
	sig <-chan os.Signal,
) bool {
	results := make(chan chunkResult, len(cfg.Chunks))
	pending := 0

	for _, chunk := range cfg.Chunks {
		if _, ok := completed[chunk.ChunkID]; ok {
			continue
		}
		d := recv.StartChunk(ctx, chunk.ChunkID)
		if d == nil {
			logger.WithChunk(chunk.ChunkID).Warn("failed to start chunk decoder")
			continue
		}
		pending++
		go func(chunkID uint32, d *decoder.Actor) {
			r := <-d.Done()
			results <- chunkResult{chunkID: chunkID, result: r}
		}(chunk.ChunkID, d)
	}

	if pending == 0 {
		return true
	}

	for pending > 0 {
		select {
		case <-sig:
			return false
		case cr := <-results:
			pending--
			chunk := cfg.Chunks[cr.chunkID]
			if cr.result.Err != nil {
				logger.DecoderFailed(cr.chunkID, cr.result.Err)
				continue
			}
			if err := cfg.VerifyChunk(cr.chunkID, cr.result.Plaintext); err != nil {
				logger.ChunkCorrupt(cr.chunkID, chunk.Hash, err.Error())
				if metrics != nil {
					metrics.RecordChunkIntegrityFailure()
				}
				continue
			}
			if err := fileio.WriteAt(outputPath, chunk.Offset, cr.result.Plaintext); err != nil {
				logger.Error(err, "write decoded chunk to disk")
				continue
			}
			if err := ledger.MarkComplete(fileKey, cr.chunkID); err != nil {
				logger.Error(err, "mark chunk complete in resume ledger")
			}
		}
	}
	return true
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
