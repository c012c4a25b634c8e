package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// WriteFile ensures the parent directory of path exists and overwrites path
// with content.
func WriteFile(path, content string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("artifact: path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("artifact: ensure dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return nil
}

// Writer persists artifacts beneath an output root.
type Writer struct {
	root   string
	clean  bool
	logger *zap.Logger
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) WriterOption {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRawOutput disables whitespace cleanup before writing.
func WithRawOutput() WriterOption {
	return func(w *Writer) {
		w.clean = false
	}
}

// NewWriter returns a writer rooted at root.
func NewWriter(root string, opts ...WriterOption) *Writer {
	w := &Writer{root: root, clean: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "artifact"))
	return w
}

// Root returns the output root.
func (w *Writer) Root() string {
	return w.root
}

// Dir returns the directory holding a phase folder.
func (w *Writer) Dir(folder string) string {
	return filepath.Join(w.root, folder)
}

// EnsureDir creates the directory for a phase folder.
func (w *Writer) EnsureDir(folder string) error {
	dir := w.Dir(folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: ensure dir %s: %w", dir, err)
	}
	return nil
}

// Write stores content at the reference's path and returns that path. The
// path is returned even when the write fails so callers can report it.
func (w *Writer) Write(ref ArtifactRef, content string) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}
	path := ref.Path(w.root)
	if w.clean {
		content = Clean(content)
	}
	if err := WriteFile(path, content); err != nil {
		w.logger.Error("artifact write failed", zap.String("artifact", ref.ID), zap.String("path", path), zap.Error(err))
		return path, err
	}
	w.logger.Info("artifact written", zap.String("artifact", ref.ID), zap.String("path", path), zap.Int("bytes", len(content)))
	return path, nil
}

// Clean strips trailing whitespace from every line and surrounding blank
// lines, keeping a single trailing newline.
func Clean(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Trim(strings.Join(lines, "\n"), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}
