// Package logging provides component-scoped loggers for the engine.
//
//	logging.Init(logging.Config{Level: "debug"})
//	logger := logging.Get("syncer")
//	logger.Info("sync complete", "written", 3)
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Output receives log lines. Nil means stderr.
	Output io.Writer

	// Quiet silences all output, e.g. when stdout carries a protocol
	// (the MCP stdio server) and stray lines would corrupt it.
	Quiet bool
}

type state struct {
	mu      sync.Mutex
	level   log.Level
	output  io.Writer
	loggers map[string]*log.Logger
}

var globalState = &state{
	level:   log.InfoLevel,
	output:  os.Stderr,
	loggers: make(map[string]*log.Logger),
}

// Init applies the configuration. Loggers handed out earlier keep
// writing with their old settings; call Init before Get.
func Init(cfg Config) error {
	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("parsing log level: %w", err)
		}
		level = parsed
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Quiet {
		output = io.Discard
	}

	globalState.mu.Lock()
	globalState.level = level
	globalState.output = output
	globalState.loggers = make(map[string]*log.Logger)
	globalState.mu.Unlock()
	return nil
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *log.Logger {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if logger, ok := globalState.loggers[component]; ok {
		return logger
	}
	logger := log.NewWithOptions(globalState.output, log.Options{
		Level:           globalState.level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          component,
	})
	globalState.loggers[component] = logger
	return logger
}
