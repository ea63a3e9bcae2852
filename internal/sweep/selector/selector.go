package selector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/mailsweep/internal/core/domain"
	"github.com/vietddude/mailsweep/internal/infra/graph"
	"github.com/vietddude/mailsweep/internal/sweep/metrics"
)

// Lister is the narrow listing surface the selector needs.
type Lister interface {
	ListMessages(ctx context.Context, folderID, filter string, pageSize int, nextLink string) (graph.Page, error)
}

// Selector pages through the mailbox and produces the candidate set for
// one run. The sequence is fetched lazily and is not restartable.
type Selector struct {
	client   Lister
	pageSize int
	log      *slog.Logger
}

// New creates a selector. pageSize is clamped to [1,100].
func New(client Lister, pageSize int) *Selector {
	if pageSize < 1 || pageSize > 100 {
		pageSize = 100
	}
	return &Selector{
		client:   client,
		pageSize: pageSize,
		log:      slog.Default().With("component", "selector"),
	}
}

// Select collects all candidates matching spec from the resolved folder.
// Page fetch errors propagate; cancellation between page fetches completes
// the selection early with whatever was already collected, without error.
// The attachment exclusion is a client-side post-filter: the service
// counts inline images as attachments, so the judgment stays local.
func (s *Selector) Select(
	ctx context.Context,
	folderID string,
	spec domain.FilterSpec,
) ([]domain.CandidateMessage, error) {
	filter := BuildFilter(spec)

	var out []domain.CandidateMessage
	seen := make(map[domain.MessageID]struct{})
	nextLink := ""
	pages := 0

	for {
		select {
		case <-ctx.Done():
			s.log.Info("selection stopped early", "pages", pages, "matched", len(out))
			return out, nil
		default:
		}

		page, err := s.client.ListMessages(ctx, folderID, filter, s.pageSize, nextLink)
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", pages+1, err)
		}
		pages++

		for _, m := range page.Messages {
			if spec.ExcludeAttachments && m.HasAttachments {
				continue
			}
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}

		s.log.Debug("page fetched", "page", pages, "matched", len(out))

		if page.NextLink == "" {
			break
		}
		nextLink = page.NextLink
	}

	metrics.MessagesSelected.Add(float64(len(out)))
	return out, nil
}

// BuildFilter renders the server-side filter expression for spec.
func BuildFilter(spec domain.FilterSpec) string {
	var parts []string

	if len(spec.Senders) == 1 {
		parts = append(parts, senderEq(spec.Senders[0]))
	} else if len(spec.Senders) > 1 {
		terms := make([]string, 0, len(spec.Senders))
		for _, s := range spec.Senders {
			terms = append(terms, senderEq(s))
		}
		parts = append(parts, "("+strings.Join(terms, " or ")+")")
	}

	if spec.UnreadOnly {
		parts = append(parts, "isRead eq false")
	}

	// Date literals are unquoted per the service's expression syntax.
	if !spec.OlderThan.IsZero() {
		parts = append(parts, "receivedDateTime lt "+odataTime(spec.OlderThan))
	}
	if !spec.NewerThan.IsZero() {
		parts = append(parts, "receivedDateTime ge "+odataTime(spec.NewerThan))
	}

	return strings.Join(parts, " and ")
}

func senderEq(addr string) string {
	// Single quotes double inside OData string literals.
	escaped := strings.ReplaceAll(addr, "'", "''")
	return fmt.Sprintf("from/emailAddress/address eq '%s'", escaped)
}

func odataTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
