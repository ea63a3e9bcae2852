package report

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/vietddude/mailsweep/internal/core/domain"
)

// WriteCSV writes the matched candidates to path, one row per message.
// rowLimit > 0 truncates the report; a truncation marker row is appended
// so a short file is distinguishable from a short match set.
func WriteCSV(path string, messages []domain.CandidateMessage, rowLimit int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "from", "receivedDateTime", "hasAttachments"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	n := len(messages)
	truncated := false
	if rowLimit > 0 && n > rowLimit {
		n = rowLimit
		truncated = true
	}

	for _, m := range messages[:n] {
		row := []string{
			string(m.ID),
			m.Sender,
			m.ReceivedAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(m.HasAttachments),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if truncated {
		omitted := len(messages) - n
		if err := w.Write([]string{fmt.Sprintf("... %d more rows omitted", omitted), "", "", ""}); err != nil {
			return fmt.Errorf("failed to write truncation marker: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}

	slog.Info("wrote match report", "path", path, "rows", n, "truncated", truncated)
	return nil
}
