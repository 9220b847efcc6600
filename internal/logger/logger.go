package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger = slog.Default()

// Options controls where and how log records are written.
type Options struct {
	Debug      bool
	Format     string // "text" or "json"
	File       string // optional rotating log file, in addition to stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// OptionsFromEnv reads DEBUG, LOG_FORMAT, LOG_FILE and the rotation knobs.
func OptionsFromEnv() Options {
	return Options{
		Debug:      os.Getenv("DEBUG") == "true",
		Format:     strings.ToLower(os.Getenv("LOG_FORMAT")),
		File:       os.Getenv("LOG_FILE"),
		MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 10),
		MaxBackups: envInt("LOG_MAX_BACKUPS", 3),
		MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 28),
	}
}

func Init() {
	if err := Setup(OptionsFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v, falling back to stdout\n", err)
		Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
		slog.SetDefault(Logger)
	}
}

// Setup installs the process-wide logger.
func Setup(opts Options) error {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, rotator)
	}

	Logger = slog.New(newHandler(w, opts.Format, level))
	slog.SetDefault(Logger)
	return nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	hopts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, hopts)
	}
	return slog.NewTextHandler(w, hopts)
}

// WithRun tags every subsequent record with a fresh run id and the command name.
func WithRun(command string) string {
	id := uuid.NewString()
	Logger = Logger.With("run_id", id, "cmd", command)
	slog.SetDefault(Logger)
	return id
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
