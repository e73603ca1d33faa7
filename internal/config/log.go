package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bongobongo2020/nexrift/internal/models"
)

// BackendSession is the captured record of one backend run.
type BackendSession struct {
	Interpreter string
	Script      string
	PID         int
	StartedAt   time.Time
	EndedAt     time.Time
	ExitCode    int
	Status      string
	Lines       []string
}

// BackendLogs reads the backend session logs under ~/.nexrift/logs.
type BackendLogs struct{}

// List returns log metadata, newest first.
func (BackendLogs) List() ([]*models.BackendLogEntry, error) {
	return ListBackendLogs()
}

// Read returns one log's metadata and captured output.
func (BackendLogs) Read(logID string) (*models.BackendLogEntry, string, error) {
	return ReadBackendLog(logID)
}

// WriteBackendLog writes a backend session log to disk with a YAML header
// followed by the captured output.
func WriteBackendLog(s *BackendSession) (*models.BackendLogEntry, error) {
	if err := EnsureGlobalLogsDir(); err != nil {
		return nil, fmt.Errorf("failed to ensure logs dir: %w", err)
	}

	logsDir, err := GlobalLogsDir()
	if err != nil {
		return nil, err
	}

	endedAt := s.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	logID := fmt.Sprintf("backend-%s-%d", s.StartedAt.UTC().Format("2006-01-02T15-04-05"), s.PID)

	entry := &models.BackendLogEntry{
		LogID:       logID,
		Interpreter: s.Interpreter,
		Script:      s.Script,
		PID:         s.PID,
		StartedAt:   s.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:     endedAt.UTC().Format(time.RFC3339),
		ExitCode:    s.ExitCode,
		Status:      s.Status,
		Lines:       len(s.Lines),
	}

	f, err := os.Create(filepath.Join(logsDir, logID+".log"))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "interpreter: %s\n", entry.Interpreter)
	fmt.Fprintf(w, "script: %s\n", entry.Script)
	fmt.Fprintf(w, "pid: %d\n", entry.PID)
	fmt.Fprintf(w, "started_at: %s\n", entry.StartedAt)
	fmt.Fprintf(w, "ended_at: %s\n", entry.EndedAt)
	fmt.Fprintf(w, "exit_code: %d\n", entry.ExitCode)
	fmt.Fprintf(w, "status: %s\n", entry.Status)
	fmt.Fprintf(w, "lines: %d\n", entry.Lines)
	fmt.Fprintln(w, "---")

	for _, line := range s.Lines {
		fmt.Fprintln(w, line)
	}

	return entry, w.Flush()
}

// ListBackendLogs returns the metadata of all backend session logs, newest first.
func ListBackendLogs() ([]*models.BackendLogEntry, error) {
	logsDir, err := GlobalLogsDir()
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var logs []*models.BackendLogEntry
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}

		entry, err := parseLogHeader(filepath.Join(logsDir, e.Name()))
		if err != nil {
			continue
		}
		logs = append(logs, entry)
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].StartedAt > logs[j].StartedAt
	})

	return logs, nil
}

// ReadBackendLog reads a specific log file and returns metadata + content.
func ReadBackendLog(logID string) (*models.BackendLogEntry, string, error) {
	if logID == "" || strings.ContainsAny(logID, `/\`) {
		return nil, "", fmt.Errorf("invalid log id %q", logID)
	}

	logsDir, err := GlobalLogsDir()
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(filepath.Join(logsDir, logID+".log"))
	if err != nil {
		return nil, "", fmt.Errorf("log not found: %w", err)
	}

	entry, body := parseLogContent(string(data))
	if entry == nil {
		return nil, "", fmt.Errorf("invalid log format")
	}
	entry.LogID = logID

	return entry, body, nil
}

func parseLogHeader(path string) (*models.BackendLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	entry := &models.BackendLogEntry{}
	inHeader := false

	for scanner.Scan() {
		line := scanner.Text()
		if line == "---" {
			if !inHeader {
				inHeader = true
				continue
			}
			break
		}
		if inHeader {
			parseLogHeaderLine(entry, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	entry.LogID = strings.TrimSuffix(filepath.Base(path), ".log")
	return entry, nil
}

func parseLogContent(content string) (*models.BackendLogEntry, string) {
	lines := strings.Split(content, "\n")
	entry := &models.BackendLogEntry{}
	headerEnd := -1
	inHeader := false

	for i, line := range lines {
		if line == "---" {
			if !inHeader {
				inHeader = true
				continue
			}
			headerEnd = i
			break
		}
		if inHeader {
			parseLogHeaderLine(entry, line)
		}
	}

	if headerEnd < 0 {
		return nil, ""
	}

	body := strings.Join(lines[headerEnd+1:], "\n")
	return entry, body
}

func parseLogHeaderLine(entry *models.BackendLogEntry, line string) {
	key, val, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "interpreter":
		entry.Interpreter = val
	case "script":
		entry.Script = val
	case "pid":
		fmt.Sscanf(val, "%d", &entry.PID)
	case "started_at":
		entry.StartedAt = val
	case "ended_at":
		entry.EndedAt = val
	case "exit_code":
		fmt.Sscanf(val, "%d", &entry.ExitCode)
	case "status":
		entry.Status = val
	case "lines":
		fmt.Sscanf(val, "%d", &entry.Lines)
	}
}
