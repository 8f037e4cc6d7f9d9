package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	if filepath.Base(path) != "psearch.log" {
		t.Errorf("DefaultLogPath should end with psearch.log, got: %s", path)
	}
	if !strings.Contains(path, ".psearch") {
		t.Errorf("DefaultLogPath should be under .psearch, got: %s", path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("unexpected rotation settings: %d MB, %d files", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if cfg.WriteToStderr {
		t.Error("expected WriteToStderr to be false")
	}
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()

	if cfg.Level != "debug" {
		t.Errorf("expected level 'debug', got: %s", cfg.Level)
	}
	if !cfg.WriteToStderr {
		t.Error("expected WriteToStderr to be true")
	}
}

func TestSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "psearch.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("file skipped", slog.String("path", "/p/a.bin"))
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(content, `"msg":"file skipped"`) || !strings.Contains(content, `"path":"/p/a.bin"`) {
		t.Errorf("expected JSON warn record, got: %s", content)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFindLogFile(t *testing.T) {
	if _, err := FindLogFile(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Error("expected error for missing explicit path")
	}

	path := filepath.Join(t.TempDir(), "x.log")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FindLogFile(path)
	if err != nil || got != path {
		t.Errorf("FindLogFile(%q) = %q, %v", path, got, err)
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psearch.log")
	w, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = w.Close() }()

	// each write is 600KB, so every write after the first rotates
	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 6; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	for _, name := range []string{"psearch.log", "psearch.log.1", "psearch.log.2"} {
		if _, err := os.Stat(filepath.Join(filepath.Dir(path), name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected at most 2 backups, found %s.3", path)
	}
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psearch.log")
	if err := os.WriteFile(path, []byte("first\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewRotatingWriter(path, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("second\n"))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("write after Close should fail")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "first\nsecond\n" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psearch.log")
	w, err := NewRotatingWriter(path, 1, 3)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = fmt.Fprintf(w, "writer %d line %d\n", id, j)
			}
		}(i)
	}
	wg.Wait()
	_ = w.Close()

	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "\n"); got != 400 {
		t.Errorf("expected 400 lines, got %d", got)
	}
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "psearch.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const (
	debugLine = `{"time":"2026-01-02T10:00:00.5Z","level":"DEBUG","msg":"visiting folder","path":"/p/src"}`
	infoLine  = `{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"index_complete","files":3,"duration_ms":12}`
	warnLine  = `{"time":"2026-01-02T10:00:02Z","level":"WARN","msg":"file skipped","path":"/p/a.bin"}`
)

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t, debugLine, "not json", infoLine, warnLine)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Msg != "index_complete" || entries[1].Msg != "file skipped" {
		t.Errorf("unexpected tail: %+v", entries)
	}

	all, err := v.Tail(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[1].IsValid {
		t.Errorf("expected 4 entries with the raw line second, got %+v", all)
	}
}

func TestViewer_Filters(t *testing.T) {
	path := writeLog(t, debugLine, infoLine, warnLine)

	v := NewViewer(ViewerConfig{Level: "info", NoColor: true}, &bytes.Buffer{})
	entries, _ := v.Tail(path, 10)
	if len(entries) != 2 {
		t.Errorf("level filter: expected 2 entries, got %d", len(entries))
	}

	v = NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`/p/`), NoColor: true}, &bytes.Buffer{})
	entries, _ = v.Tail(path, 10)
	if len(entries) != 2 || entries[1].Level != "WARN" {
		t.Errorf("pattern filter: unexpected %+v", entries)
	}
}

func TestViewer_Tail_NonexistentFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	if _, err := v.Tail(filepath.Join(t.TempDir(), "nope.log"), 10); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestViewer_FormatAndPrint(t *testing.T) {
	buf := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true}, buf)

	v.Print([]LogEntry{parseLine(infoLine), parseLine("plain text")})

	want := "10:00:01.000 INFO  index_complete duration_ms=12 files=3\nplain text\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestViewer_Follow(t *testing.T) {
	path := writeLog(t, infoLine)
	v := NewViewer(ViewerConfig{Level: "warn"}, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// let Follow seek to the end before appending
	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(debugLine + "\n" + warnLine + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Msg != "file skipped" {
			t.Errorf("unexpected entry %+v", e)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for entry")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned %v", err)
	}
}
