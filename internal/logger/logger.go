package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/gzhole/fortress/internal/redact"
)

// defaultMaxLogBytes is the size at which the audit file is rotated to
// <path>.1 before the next write.
const defaultMaxLogBytes = 10 << 20

// AuditLogger appends security events to a JSON-lines file.
type AuditLogger struct {
	path     string
	file     *os.File
	size     int64
	maxBytes int64
	closed   bool
	mu       sync.Mutex
}

func NewAuditLogger(path string) (*AuditLogger, error) {
	l := &AuditLogger{path: path, maxBytes: defaultMaxLogBytes}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *AuditLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	l.file = file
	l.size = info.Size()
	return nil
}

// Emit writes one event. Free-text fields are redacted first.
func (l *AuditLogger) Emit(event SecurityEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.UserID = redact.Redact(event.UserID)
	if event.Note != "" {
		event.Note = redact.Redact(event.Note)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if l.closed {
		return os.ErrClosed
	}

	var rotateErr error
	if l.size+int64(len(data)) > l.maxBytes && l.size > 0 {
		if err := l.rotate(); err != nil {
			rotateErr = fmt.Errorf("rotating %s: %w", l.path, err)
		}
	}
	if l.file == nil {
		if err := l.open(); err != nil {
			return errors.Join(rotateErr, err)
		}
	}

	n, err := l.file.Write(data)
	l.size += int64(n)
	return errors.Join(rotateErr, err)
}

// rotate moves the file to <path>.1 and reopens path. The file is reopened
// even when the rename fails, so a failed rotation never stops logging.
func (l *AuditLogger) rotate() error {
	var closeErr error
	if l.file != nil {
		closeErr = l.file.Close()
		l.file = nil
	}
	renameErr := os.Rename(l.path, l.path+".1")
	return errors.Join(closeErr, renameErr, l.open())
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// ReadEvents parses a JSON-lines audit file. Malformed lines are skipped.
func ReadEvents(path string) ([]SecurityEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var events []SecurityEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev SecurityEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}
