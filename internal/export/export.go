// Package export writes the bundled spoof_device.sh helper to disk.
package export

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"idmask/pkg/platform/audit"
)

//go:embed assets/spoof_device.sh
var script []byte

const (
	scriptDir  = "DeviceSpoofer"
	scriptName = "spoof_device.sh"
)

// Script returns a copy of the bundled script.
func Script() []byte {
	return append([]byte(nil), script...)
}

// AuditPublisher receives audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Exporter struct {
	baseDir        string
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Exporter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Exporter) {
		e.auditPublisher = publisher
	}
}

// New exports under baseDir.
func New(baseDir string, opts ...Option) *Exporter {
	e := &Exporter{baseDir: baseDir}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Export copies the script byte-for-byte to <baseDir>/DeviceSpoofer/spoof_device.sh
// with mode 0755, replacing any previous copy, and returns its absolute path.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	dir, err := filepath.Abs(filepath.Join(e.baseDir, scriptDir))
	if err != nil {
		return "", fmt.Errorf("resolve export dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, scriptName)
	if err := os.WriteFile(path, script, 0o755); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o755); err != nil {
		return "", fmt.Errorf("make script executable: %w", err)
	}

	audit.Record(ctx, e.logger, e.auditPublisher, audit.EventScriptExported,
		"path", path,
	)
	return path, nil
}
