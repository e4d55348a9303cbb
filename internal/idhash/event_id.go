package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"wallet-signal-lab/internal/domain"
)

// ComputeWhaleEventID computes a deterministic whale event_id using SHA256.
// Formula: SHA256(wallet|window|event_type|event_time|flow_ref)
// Returns hex-encoded hash (64 characters).
func ComputeWhaleEventID(key domain.WhaleEventKey) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%s",
		key.Wallet,
		string(key.Window),
		key.EventType,
		key.EventTime,
		key.FlowRef,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSilenceEventID computes a deterministic silence event_id.
// Formula: SHA256(mint|wallet|pattern|event_time)
func ComputeSilenceEventID(mint, wallet, pattern string, eventTime int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d", mint, wallet, pattern, eventTime)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeWalletSignalID computes a deterministic wallet signal id.
// Formula: SHA256(mint|wallet|event_time|flow_ref)
func ComputeWalletSignalID(mint, wallet string, eventTime int64, flowRef string) string {
	data := fmt.Sprintf("%s|%s|%d|%s", mint, wallet, eventTime, flowRef)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
