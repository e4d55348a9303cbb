package ingestion

import (
	"context"
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/solana"
	"wallet-signal-lab/internal/solana/stub"
)

const testMint = "MintAddr111"

// payer is the base58 of the ed25519 generator, a valid on-curve address.
var payer = base58.Encode(edwards25519.NewGeneratorPoint().Bytes())

func newRPC(txs ...*solana.Transaction) *stub.RPCClient {
	rpc := stub.NewRPCClient()
	for _, t := range txs {
		rpc.AddTransaction(t)
	}
	return rpc
}

func tx(sig string, blockTime, pre, post, fee int64) *solana.Transaction {
	return &solana.Transaction{
		Slot:      blockTime * 2,
		Signature: sig,
		BlockTime: blockTime,
		Meta: &solana.TransactionMeta{
			Fee:          fee,
			PreBalances:  []int64{pre},
			PostBalances: []int64{post},
		},
		Message: &solana.TransactionMessage{AccountKeys: []string{payer}},
	}
}

func TestFlowFromTransaction(t *testing.T) {
	tests := []struct {
		name    string
		tx      *solana.Transaction
		ok      bool
		wantDir domain.Direction
		wantAmt int64
	}{
		{"buy", tx("s1", 100, 10_000_000_000, 4_999_995_000, 5000), true, domain.DirectionBuy, 5_000_000_000},
		{"sell", tx("s2", 100, 1_000_000_000, 2_999_995_000, 5000), true, domain.DirectionSell, 2_000_000_000},
		{"fee only", tx("s3", 100, 1_000_000_000, 999_995_000, 5000), false, "", 0},
		{"nil", nil, false, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := FlowFromTransaction(tt.tx, testMint)
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if f.Direction != tt.wantDir || f.Amount != tt.wantAmt {
				t.Errorf("got (%s, %d), want (%s, %d)", f.Direction, f.Amount, tt.wantDir, tt.wantAmt)
			}
			if f.Wallet != payer || f.Mint != testMint || f.Timestamp != 100 {
				t.Errorf("unexpected flow: %+v", f)
			}
		})
	}
}

func TestFlowFromTransaction_Rejects(t *testing.T) {
	failed := tx("s1", 100, 10, 5, 0)
	failed.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}
	if _, ok := FlowFromTransaction(failed, testMint); ok {
		t.Error("failed transaction should be skipped")
	}

	badPayer := tx("s2", 100, 10, 5, 0)
	badPayer.Message.AccountKeys = []string{"not-base58-0OIl"}
	if _, ok := FlowFromTransaction(badPayer, testMint); ok {
		t.Error("invalid fee payer should be skipped")
	}

	shortPayer := tx("s3", 100, 10, 5, 0)
	shortPayer.Message.AccountKeys = []string{base58.Encode([]byte{1, 2, 3})}
	if _, ok := FlowFromTransaction(shortPayer, testMint); ok {
		t.Error("short fee payer should be skipped")
	}

	noBalances := tx("s4", 100, 10, 5, 0)
	noBalances.Meta.PreBalances = nil
	if _, ok := FlowFromTransaction(noBalances, testMint); ok {
		t.Error("missing balances should be skipped")
	}
}

func TestRPCFlowSource_Fetch(t *testing.T) {
	bt := func(v int64) *int64 { return &v }
	rpc := newRPC(
		tx("s5", 500, 10, 5, 0),
		tx("s4", 400, 10, 5, 0),
		tx("s2", 200, 5, 10, 0),
		tx("s1", 100, 10, 5, 0),
	)
	// newest first
	rpc.AddSignatures(testMint, []solana.SignatureInfo{
		{Signature: "s5", BlockTime: bt(500)},
		{Signature: "s4", BlockTime: bt(400)},
		{Signature: "s3", BlockTime: bt(300), Err: "failed"},
		{Signature: "s2", BlockTime: bt(200)},
		{Signature: "s1", BlockTime: bt(100)},
	})

	src := NewRPCFlowSource(rpc, nil).WithPageSize(2)
	flows, err := src.Fetch(context.Background(), testMint, 200, 500)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(flows) != 2 {
		t.Fatalf("expected 2 flows, got %d", len(flows))
	}
	if flows[0].Signature != "s4" || flows[1].Signature != "s2" {
		t.Errorf("unexpected signatures: %s, %s", flows[0].Signature, flows[1].Signature)
	}
	if flows[1].Direction != domain.DirectionSell {
		t.Errorf("expected SELL for s2, got %s", flows[1].Direction)
	}
	for _, sig := range []string{"s5", "s3", "s1"} {
		if rpc.Calls(sig) != 0 {
			t.Errorf("out of range or failed signature %s fetched", sig)
		}
	}
}

func TestRetryGetTransaction(t *testing.T) {
	rpc := newRPC(tx("s1", 100, 10, 5, 0))
	rpc.FailFirst("s1", 1)
	src := NewRPCFlowSource(rpc, nil)

	got, err := retryGetTransaction(context.Background(), rpc, "s1", src.log)
	if err != nil {
		t.Fatalf("retryGetTransaction: %v", err)
	}
	if got == nil || rpc.Calls("s1") != 2 {
		t.Errorf("expected success on second attempt, calls=%d", rpc.Calls("s1"))
	}
}

type fakeSubscriber struct {
	ch     chan solana.LogNotification
	filter solana.LogsFilter
}

func (f *fakeSubscriber) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	f.filter = filter
	return f.ch, nil
}

func TestWSFlowSource_Subscribe(t *testing.T) {
	sub := &fakeSubscriber{ch: make(chan solana.LogNotification, 3)}
	rpc := newRPC(tx("s1", 100, 10, 5, 0), tx("s3", 101, 5, 10, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := NewWSFlowSource(sub, rpc, nil)
	flows, err := src.Subscribe(ctx, testMint)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if len(sub.filter.Mentions) != 1 || sub.filter.Mentions[0] != testMint {
		t.Errorf("unexpected filter: %+v", sub.filter)
	}

	sub.ch <- solana.LogNotification{Signature: "s1", Slot: 1}
	sub.ch <- solana.LogNotification{Signature: "s2", Slot: 2, Err: "failed"}
	sub.ch <- solana.LogNotification{Signature: "s3", Slot: 3}
	close(sub.ch)

	var got []string
	for f := range flows {
		got = append(got, f.Signature+":"+string(f.Direction))
	}
	want := []string{"s1:BUY", "s3:SELL"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flow %d: got %s, want %s", i, got[i], want[i])
		}
	}
}
