package retry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDLQ_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	dlq, err := NewDLQ(DLQConfig{Enabled: true, FilePath: path, MaxSize: 2})
	if err != nil {
		t.Fatalf("NewDLQ() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := dlq.Add(DLQEntry{Timestamp: time.Now(), FailureType: "max_attempts_exceeded", Data: i}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if err := dlq.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if lines := strings.Count(string(raw), "\n"); lines != 3 {
		t.Errorf("file has %d lines, want 3", lines)
	}

	// В памяти только MaxSize записей, общий счетчик полный
	if dlq.Size() != 3 || len(dlq.Get()) != 2 {
		t.Errorf("Size() = %d, len(Get()) = %d", dlq.Size(), len(dlq.Get()))
	}

	stats := dlq.GetStats()
	if stats.TotalEntries != 3 || stats.FailureTypes["max_attempts_exceeded"] != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestDLQ_Compact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	dlq, err := NewDLQ(DLQConfig{Enabled: true, FilePath: path, RetentionPeriod: time.Hour})
	if err != nil {
		t.Fatalf("NewDLQ() error = %v", err)
	}
	defer dlq.Close()

	_ = dlq.Add(DLQEntry{Timestamp: time.Now().Add(-2 * time.Hour), FailureType: "old"})
	_ = dlq.Add(DLQEntry{Timestamp: time.Now(), FailureType: "new"})

	removed, err := dlq.Compact()
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if removed != 1 || dlq.Size() != 1 {
		t.Errorf("removed = %d, size = %d", removed, dlq.Size())
	}

	// После компактификации запись продолжается в тот же файл
	_ = dlq.Add(DLQEntry{Timestamp: time.Now(), FailureType: "after"})
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), `"old"`) || !strings.Contains(string(raw), `"after"`) {
		t.Errorf("unexpected file content:\n%s", raw)
	}
}

func TestDLQ_EmptyStats(t *testing.T) {
	dlq, err := NewDLQ(DLQConfig{Enabled: true, FilePath: filepath.Join(t.TempDir(), "dlq.jsonl")})
	if err != nil {
		t.Fatalf("NewDLQ() error = %v", err)
	}
	defer dlq.Close()

	stats := dlq.GetStats()
	if stats.TotalEntries != 0 || !stats.OldestEntry.IsZero() {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestDLQ_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDLQ(DLQConfig{Enabled: true, FilePath: path}); err == nil {
		t.Error("Expected error for corrupt DLQ file")
	}
}
