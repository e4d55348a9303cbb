package domain

// TokenState is the macro lifecycle state of a monitored token.
type TokenState string

const (
	TokenQuiet                  TokenState = "TOKEN_QUIET"
	TokenIgnition               TokenState = "TOKEN_IGNITION"
	TokenCoordinationSpike      TokenState = "TOKEN_COORDINATION_SPIKE"
	TokenEarlyPhase             TokenState = "TOKEN_EARLY_PHASE"
	TokenPersistenceConfirmed   TokenState = "TOKEN_PERSISTENCE_CONFIRMED"
	TokenParticipationExpansion TokenState = "TOKEN_PARTICIPATION_EXPANSION"
	TokenPressurePeaking        TokenState = "TOKEN_PRESSURE_PEAKING"
	TokenExhaustionDetected     TokenState = "TOKEN_EXHAUSTION_DETECTED"
	TokenDissipation            TokenState = "TOKEN_DISSIPATION"
)

// String returns the string representation of TokenState.
func (s TokenState) String() string {
	return string(s)
}

// StateTransition is an atomic change of a token's lifecycle state.
// Corresponds to state_transitions table in PostgreSQL.
type StateTransition struct {
	Mint      string
	EpisodeID int
	From      TokenState
	To        TokenState
	Trigger   string // short machine-readable reason
	Time      int64  // seconds
	Severity  string // S1..S5, empty for TOKEN_QUIET
}
