package control

import (
	"context"
	"testing"

	"github.com/vietddude/mailsweep/internal/core/config"
	"github.com/vietddude/mailsweep/internal/core/domain"
)

func sweeperWith(opts Options, threshold int) *Sweeper {
	cfg := config.AppConfig{}
	cfg.Sweep.ConfirmThreshold = threshold
	return &Sweeper{cfg: cfg, opts: opts}
}

func TestConfirmed(t *testing.T) {
	asked := false
	decline := func(int) bool { asked = true; return false }

	tests := []struct {
		name      string
		opts      Options
		threshold int
		matched   int
		want      bool
		wantAsked bool
	}{
		{
			name:      "below threshold skips prompt",
			opts:      Options{Confirm: decline},
			threshold: 500,
			matched:   100,
			want:      true,
		},
		{
			name:      "at threshold asks",
			opts:      Options{Confirm: decline},
			threshold: 500,
			matched:   500,
			want:      false,
			wantAsked: true,
		},
		{
			name:      "assume yes never asks",
			opts:      Options{AssumeYes: true, Confirm: decline},
			threshold: 500,
			matched:   10000,
			want:      true,
		},
		{
			name:      "dry run never asks",
			opts:      Options{DryRun: true, Confirm: decline},
			threshold: 500,
			matched:   10000,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asked = false
			s := sweeperWith(tt.opts, tt.threshold)
			if got := s.confirmed(tt.matched); got != tt.want {
				t.Errorf("confirmed(%d) = %v, want %v", tt.matched, got, tt.want)
			}
			if asked != tt.wantAsked {
				t.Errorf("prompt asked = %v, want %v", asked, tt.wantAsked)
			}
		})
	}
}

func TestNoopDeleterSucceedsEverything(t *testing.T) {
	ids := []domain.MessageID{"a", "b", "c"}
	results, err := noopDeleter{}.DeleteBatch(context.Background(), ids, domain.DeleteModeHard)
	if err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for i, r := range results {
		if r.ID != ids[i] || r.Class != domain.ClassSuccess {
			t.Errorf("result[%d] = %+v", i, r)
		}
	}
}
