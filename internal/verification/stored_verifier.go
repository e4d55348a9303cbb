package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/storage"
	"wallet-signal-lab/internal/whale"
)

// StoredReport is the result of checking persisted events against a fresh
// recomputation from persisted flows.
type StoredReport struct {
	RunID      string
	Mint       string
	Flows      int
	VerifiedAt time.Time
	*ReconcileReport
}

// Verifier recomputes whale events from the flow store and diffs them with the event store.
type Verifier struct {
	flows      storage.FlowStore
	events     storage.WhaleEventStore
	thresholds whale.Thresholds
	log        *logger.Logger
	now        func() time.Time
}

// NewVerifier creates a new Verifier.
func NewVerifier(flows storage.FlowStore, events storage.WhaleEventStore, thresholds whale.Thresholds, log *logger.Logger) *Verifier {
	return &Verifier{
		flows:      flows,
		events:     events,
		thresholds: thresholds,
		log:        log.Named("verifier"),
		now:        time.Now,
	}
}

// VerifyStored rebuilds the event set for a mint with the batch builder and
// compares it against the stored events of that mint. When wallets are given
// only their events are compared.
func (v *Verifier) VerifyStored(ctx context.Context, mint string, wallets ...string) (*StoredReport, error) {
	runID := uuid.NewString()
	log := v.log.With("run_id", runID, "mint", mint)

	flows, err := v.flows.GetByMint(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("load flows: %w", err)
	}

	recomputed := whale.BuildEvents(flows, v.thresholds)
	for i := range recomputed {
		recomputed[i].Mint = mint
	}

	stored, err := v.events.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load whale events: %w", err)
	}

	filter := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		filter[w] = struct{}{}
	}
	keep := func(e *domain.WhaleEvent) bool {
		if e.Mint != mint {
			return false
		}
		if len(filter) == 0 {
			return true
		}
		_, ok := filter[e.Wallet]
		return ok
	}

	var expected, actual []domain.WhaleEvent
	for _, e := range stored {
		if keep(e) {
			expected = append(expected, *e)
		}
	}
	for i := range recomputed {
		if keep(&recomputed[i]) {
			actual = append(actual, recomputed[i])
		}
	}

	report := &StoredReport{
		RunID:           runID,
		Mint:            mint,
		Flows:           len(flows),
		VerifiedAt:      v.now().UTC(),
		ReconcileReport: Reconcile(expected, actual),
	}

	if report.Match() {
		log.Infow("stored events verified", "events", report.MatchedCount, "flows", report.Flows)
	} else {
		log.Warnw("stored events diverge",
			"missing_recomputed", len(report.MissingFromActual),
			"missing_stored", len(report.MissingFromExpect),
			"field_divergences", len(report.Divergences),
		)
	}
	return report, nil
}
