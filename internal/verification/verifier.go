// Package verification checks that streaming and batch whale detection agree,
// both in memory and against what has been persisted.
package verification

import (
	"sort"

	"wallet-signal-lab/internal/domain"
)

// FieldDivergence represents a mismatch between two events with the same identity key.
type FieldDivergence struct {
	Key      domain.WhaleEventKey
	Field    string      // field name
	Expected interface{} // value on the reference side
	Actual   interface{} // value on the compared side
}

// ReconcileReport contains the result of diffing two whale event sets.
type ReconcileReport struct {
	ExpectedCount      int
	ActualCount        int
	MatchedCount       int                   // keys present on both sides with equal fields
	MissingFromActual  []domain.WhaleEventKey // in expected only
	MissingFromExpect  []domain.WhaleEventKey // in actual only
	Divergences        []FieldDivergence
	DuplicateKeysFound int // repeated identity keys inside either input
}

// Match reports whether the two sets were identical.
func (r *ReconcileReport) Match() bool {
	return len(r.MissingFromActual) == 0 &&
		len(r.MissingFromExpect) == 0 &&
		len(r.Divergences) == 0 &&
		r.DuplicateKeysFound == 0
}

// CompareWhaleEvents compares the payload of two events sharing an identity key.
func CompareWhaleEvents(expected, actual *domain.WhaleEvent) []FieldDivergence {
	var divergences []FieldDivergence
	key := expected.Key()

	if expected.Amount != actual.Amount {
		divergences = append(divergences, FieldDivergence{
			Key:      key,
			Field:    "Amount",
			Expected: expected.Amount,
			Actual:   actual.Amount,
		})
	}

	if expected.SupportingFlows != actual.SupportingFlows {
		divergences = append(divergences, FieldDivergence{
			Key:      key,
			Field:    "SupportingFlows",
			Expected: expected.SupportingFlows,
			Actual:   actual.SupportingFlows,
		})
	}

	if expected.Mint != actual.Mint {
		divergences = append(divergences, FieldDivergence{
			Key:      key,
			Field:    "Mint",
			Expected: expected.Mint,
			Actual:   actual.Mint,
		})
	}

	return divergences
}

// Reconcile diffs two event sets by identity key. Typical use passes the
// streaming detector output as expected and the batch recomputation as actual.
func Reconcile(expected, actual []domain.WhaleEvent) *ReconcileReport {
	report := &ReconcileReport{
		ExpectedCount: len(expected),
		ActualCount:   len(actual),
	}

	exp, dupExp := index(expected)
	act, dupAct := index(actual)
	report.DuplicateKeysFound = dupExp + dupAct

	for k, e := range exp {
		a, ok := act[k]
		if !ok {
			report.MissingFromActual = append(report.MissingFromActual, k)
			continue
		}
		d := CompareWhaleEvents(e, a)
		if len(d) == 0 {
			report.MatchedCount++
		}
		report.Divergences = append(report.Divergences, d...)
	}
	for k := range act {
		if _, ok := exp[k]; !ok {
			report.MissingFromExpect = append(report.MissingFromExpect, k)
		}
	}

	sortKeys(report.MissingFromActual)
	sortKeys(report.MissingFromExpect)
	sort.SliceStable(report.Divergences, func(i, j int) bool {
		return keyLess(report.Divergences[i].Key, report.Divergences[j].Key)
	})

	return report
}

func index(events []domain.WhaleEvent) (map[domain.WhaleEventKey]*domain.WhaleEvent, int) {
	m := make(map[domain.WhaleEventKey]*domain.WhaleEvent, len(events))
	dups := 0
	for i := range events {
		k := events[i].Key()
		if _, exists := m[k]; exists {
			dups++
			continue
		}
		m[k] = &events[i]
	}
	return m, dups
}

func sortKeys(keys []domain.WhaleEventKey) {
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
}

func keyLess(a, b domain.WhaleEventKey) bool {
	ea := domain.WhaleEvent{Wallet: a.Wallet, Window: a.Window, EventType: a.EventType, EventTime: a.EventTime, FlowRef: a.FlowRef}
	eb := domain.WhaleEvent{Wallet: b.Wallet, Window: b.Window, EventType: b.EventType, EventTime: b.EventTime, FlowRef: b.FlowRef}
	return domain.WhaleEventLess(&ea, &eb)
}
