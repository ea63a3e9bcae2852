package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/mailsweep/internal/core/domain"
)

func sampleMessages(n int) []domain.CandidateMessage {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]domain.CandidateMessage, n)
	for i := range msgs {
		msgs[i] = domain.CandidateMessage{
			ID:         domain.MessageID(string(rune('a' + i))),
			Sender:     "noreply@example.com",
			ReceivedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return msgs
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	return rows
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := WriteCSV(path, sampleMessages(3), 0); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "id" || rows[0][1] != "from" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][2] != "2025-06-01T12:00:00Z" {
		t.Fatalf("receivedDateTime = %q", rows[1][2])
	}
}

func TestWriteCSVTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := WriteCSV(path, sampleMessages(10), 4); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows := readRows(t, path)
	// header + 4 rows + truncation marker
	if len(rows) != 6 {
		t.Fatalf("rows = %d, want 6", len(rows))
	}
	if rows[5][0] != "... 6 more rows omitted" {
		t.Fatalf("marker = %q", rows[5][0])
	}
}
