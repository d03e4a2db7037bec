package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"falcon/internal/config"
	"falcon/internal/daemon"
	"falcon/internal/dispatch"
	"falcon/internal/logging"
	"falcon/internal/services/cromwell"
)

// Options configures dispatcher process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Engine replaces the Cromwell client built from cfg.
	Engine dispatch.Engine
}

// Run starts the falcon dispatcher and blocks until SIGINT, SIGTERM, a
// cancelled cmdCtx, or a fatal dispatch error. A signal-triggered shutdown
// returns nil.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("falcon-%s.log", runID))
	sessionID := uuid.NewString()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		SessionID:        sessionID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update falcon.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "falcon-*.log", Active: logPath},
	)
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "falcon.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	engine := opts.Engine
	if engine == nil {
		client, err := cromwell.NewFromConfig(cfg, cromwell.WithLogger(logger))
		if err != nil {
			logger.Error("create engine client", logging.Error(err))
			return err
		}
		engine = client
	}

	d, err := daemon.New(cfg, engine, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	runErr := d.Run(signalCtx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	logger.Info("falcon dispatcher shut down")
	return nil
}

// ensureCurrentLogPointer points falcon.log at the active run log so a plain
// tail follows the current process.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "falcon.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("engine_url", cfg.Engine.URL),
		logging.String("auth_mode", cfg.Engine.AuthMode),
		logging.Bool("credentials_present", credentialsPresent(cfg.Engine)),
		logging.String("collection_name", cfg.Engine.CollectionName),
		logging.String("status", cfg.Discovery.Status),
		logging.Int("label_filters", len(cfg.Discovery.Labels)),
		logging.Bool("include_subworkflows", cfg.Discovery.IncludeSubworkflows),
		logging.Int("igniters", cfg.Dispatch.Igniters),
		logging.Int("queue_max_size", cfg.Dispatch.QueueMaxSize),
		logging.Any("max_requests_per_second", cfg.Engine.MaxRequestsPerSecond),
	)
}

func credentialsPresent(engine config.Engine) bool {
	if engine.UsesServiceAccount() {
		return strings.TrimSpace(engine.ServiceAccountKey) != ""
	}
	return engine.Username != "" && engine.Password != ""
}
