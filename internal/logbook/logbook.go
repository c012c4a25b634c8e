// Package logbook keeps the human readable run journal: one timestamped
// line per phase and step event, appended to a text file that survives the
// process.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a journal entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook persists run progress to a simple text file.
type Logbook struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
	scope string
	// root shares the lock between scoped views of the same file.
	root *Logbook
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	return &Logbook{path: path, clock: time.Now}, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Scoped returns a view that tags every entry with scope, typically a run
// id or a phase.
func (l *Logbook) Scoped(scope string) *Logbook {
	if l == nil {
		return nil
	}
	root := l.base()
	tag := strings.TrimSpace(scope)
	if l.scope != "" && tag != "" {
		tag = l.scope + "/" + tag
	} else if tag == "" {
		tag = l.scope
	}
	return &Logbook{path: l.path, clock: l.clock, scope: tag, root: root}
}

func (l *Logbook) base() *Logbook {
	if l.root != nil {
		return l.root
	}
	return l
}

// Append writes a single entry. Write failures are swallowed; the journal
// never interrupts a run.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	root := l.base()
	root.mu.Lock()
	defer root.mu.Unlock()
	message = strings.TrimSpace(message)
	if l.scope != "" {
		message = "[" + l.scope + "] " + message
	}
	line := fmt.Sprintf("%s %-5s %s\n",
		l.clock().UTC().Format(time.RFC3339),
		string(level),
		message,
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries plus the total
// number of entries in the journal.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	root := l.base()
	root.mu.Lock()
	defer root.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Entry is a parsed journal line.
type Entry struct {
	Time    time.Time
	Level   Level
	Scope   string
	Message string
}

// ParseEntry splits a journal line into its parts.
func ParseEntry(line string) (Entry, bool) {
	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return Entry{}, false
	}
	rest := strings.TrimLeft(fields[1], " ")
	levelEnd := strings.IndexByte(rest, ' ')
	if levelEnd < 0 {
		return Entry{}, false
	}
	entry := Entry{Time: ts, Level: Level(rest[:levelEnd])}
	message := strings.TrimLeft(rest[levelEnd:], " ")
	if strings.HasPrefix(message, "[") {
		if end := strings.IndexByte(message, ']'); end > 0 {
			entry.Scope = message[1:end]
			message = strings.TrimLeft(message[end+1:], " ")
		}
	}
	entry.Message = message
	return entry, true
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
