package lifecycle

import "wallet-signal-lab/internal/domain"

// measure is the number a transition was decided on: a wallet count, the
// time spent in the previous state, or the silent share of early wallets.
type measure struct {
	count    int
	duration int64
	pct      float64
}

// severityScale ranks transitions S1..S5 within an episode. The last
// severity is kept so DISSIPATION can inherit the strength of what came before.
type severityScale struct {
	last string
}

func (s *severityScale) reset() {
	s.last = ""
}

func (s *severityScale) rate(to domain.TokenState, trigger string, m measure, earlyWallets int) string {
	var sev string
	switch to {
	case domain.TokenQuiet:
		return ""
	case domain.TokenIgnition:
		sev = domain.SeverityWeak
		if earlyWallets >= 2 {
			sev = domain.SeverityLight
		}
	case domain.TokenCoordinationSpike:
		sev = ladder(m.count, []int{6, 5, 4}, domain.SeverityLight)
	case domain.TokenEarlyPhase:
		sev = domain.SeverityLight
		if m.duration >= 180 && earlyWallets >= 3 {
			sev = domain.SeverityModerate
		}
	case domain.TokenPersistenceConfirmed:
		sev = ladder(m.count, []int{4, 3}, domain.SeverityModerate)
	case domain.TokenParticipationExpansion:
		switch {
		case trigger == TriggerBurstReversal, m.count >= 3:
			sev = domain.SeverityStrong
		case m.count >= 2:
			sev = domain.SeverityModerate
		default:
			sev = domain.SeverityLight
		}
	case domain.TokenPressurePeaking:
		sev = ladder(m.count, []int{10, 7}, domain.SeverityModerate)
	case domain.TokenExhaustionDetected:
		switch {
		case m.pct >= 0.80:
			sev = domain.SeverityExtreme
		case m.pct >= 0.70:
			sev = domain.SeverityStrong
		default:
			sev = domain.SeverityModerate
		}
	case domain.TokenDissipation:
		sev = domain.SeverityLight
		if s.last == domain.SeverityStrong || s.last == domain.SeverityExtreme {
			sev = domain.SeverityStrong
		}
	default:
		sev = domain.SeverityLight
	}
	s.last = sev
	return sev
}

// ladder maps n onto S5, S4, S3 by descending cut points, falling back to floor.
func ladder(n int, cuts []int, floor string) string {
	levels := []string{domain.SeverityExtreme, domain.SeverityStrong, domain.SeverityModerate}
	for i, c := range cuts {
		if n >= c {
			return levels[i]
		}
	}
	return floor
}
