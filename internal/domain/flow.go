package domain

import "strings"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL int64 = 1_000_000_000

// Direction is the side of a flow relative to the token: BUY spends SOL,
// SELL receives SOL.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is a valid value.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// ParseDirection normalizes a raw direction label from upstream feeds.
// Returns false for missing or unrecognized labels.
func ParseDirection(raw string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "in", "receive", "received":
		return DirectionBuy, true
	case "sell", "out", "sent", "send":
		return DirectionSell, true
	default:
		return "", false
	}
}

// Flow is one directional SOL trade by a wallet.
// Corresponds to flows table in PostgreSQL.
type Flow struct {
	Wallet    string    // trader wallet address (base58)
	Mint      string    // token mint address, empty for chain-wide tables
	Timestamp int64     // Unix timestamp in seconds
	Direction Direction // BUY | SELL
	Amount    int64     // SOL amount in lamports, non-negative
	Signature string    // transaction signature, the flow reference id
	Slot      int64     // Solana slot number
}

// Key returns the identity of a flow: one wallet, one side, one transaction.
func (f *Flow) Key() string {
	return f.Wallet + "|" + string(f.Direction) + "|" + f.Signature
}

// Validate reports whether the flow can be fed to the detectors.
func (f *Flow) Validate() bool {
	return f.Wallet != "" &&
		f.Signature != "" &&
		f.Timestamp > 0 &&
		f.Amount >= 0 &&
		f.Direction.IsValid()
}

// FlowLess reports whether a sorts before b in canonical stream order:
// timestamp, signature, wallet, direction ASC.
func FlowLess(a, b *Flow) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.Signature != b.Signature {
		return a.Signature < b.Signature
	}
	if a.Wallet != b.Wallet {
		return a.Wallet < b.Wallet
	}
	return a.Direction < b.Direction
}
