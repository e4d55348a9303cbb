package ingestion

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/solana"
)

// FlowFromTransaction derives the fee payer's SOL flow from a transaction.
//
// The fee payer is the first account key. Its balance delta with the fee
// added back is the SOL spent on or received from the trade: a negative delta
// is a BUY, a positive one a SELL. Returns false for failed transactions,
// zero deltas, missing balances and fee payers that are not wallet addresses.
func FlowFromTransaction(tx *solana.Transaction, mint string) (*domain.Flow, bool) {
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return nil, false
	}
	if tx.Meta.Err != nil || tx.BlockTime <= 0 {
		return nil, false
	}
	if len(tx.Message.AccountKeys) == 0 ||
		len(tx.Meta.PreBalances) == 0 || len(tx.Meta.PostBalances) == 0 {
		return nil, false
	}

	payer := tx.Message.AccountKeys[0]
	if !isWalletAddress(payer) {
		return nil, false
	}

	delta := tx.Meta.PostBalances[0] - tx.Meta.PreBalances[0] + tx.Meta.Fee
	var dir domain.Direction
	switch {
	case delta < 0:
		dir = domain.DirectionBuy
		delta = -delta
	case delta > 0:
		dir = domain.DirectionSell
	default:
		return nil, false
	}

	return &domain.Flow{
		Wallet:    payer,
		Mint:      mint,
		Timestamp: tx.BlockTime,
		Direction: dir,
		Amount:    delta,
		Signature: tx.Signature,
		Slot:      tx.Slot,
	}, true
}

// isWalletAddress reports whether addr decodes to a 32-byte ed25519 point.
// Program derived addresses are off curve and never sign.
func isWalletAddress(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
