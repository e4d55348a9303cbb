package domain

import "testing"

func TestParseDirection(t *testing.T) {
	tests := []struct {
		raw  string
		want Direction
		ok   bool
	}{
		{"buy", DirectionBuy, true},
		{"BUY", DirectionBuy, true},
		{" in ", DirectionBuy, true},
		{"receive", DirectionBuy, true},
		{"Received", DirectionBuy, true},
		{"sell", DirectionSell, true},
		{"out", DirectionSell, true},
		{"sent", DirectionSell, true},
		{"send", DirectionSell, true},
		{"", "", false},
		{"swap", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseDirection(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseDirection(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFlow_Validate(t *testing.T) {
	valid := Flow{Wallet: "w", Signature: "s", Timestamp: 1, Direction: DirectionBuy, Amount: 0}
	if !valid.Validate() {
		t.Error("expected zero-amount flow to be valid")
	}

	cases := map[string]Flow{
		"missing wallet":    {Signature: "s", Timestamp: 1, Direction: DirectionBuy},
		"missing signature": {Wallet: "w", Timestamp: 1, Direction: DirectionBuy},
		"missing time":      {Wallet: "w", Signature: "s", Direction: DirectionBuy},
		"bad direction":     {Wallet: "w", Signature: "s", Timestamp: 1, Direction: "HOLD"},
		"negative amount":   {Wallet: "w", Signature: "s", Timestamp: 1, Direction: DirectionSell, Amount: -1},
	}
	for name, f := range cases {
		if f.Validate() {
			t.Errorf("%s: expected invalid", name)
		}
	}
}

func TestWhaleEvent_Direction(t *testing.T) {
	buy := WhaleEvent{EventType: EventWhaleCum24hBuy}
	sell := WhaleEvent{EventType: EventType(EventPrefixCum15m, DirectionSell)}

	if buy.Direction() != DirectionBuy {
		t.Errorf("expected BUY, got %q", buy.Direction())
	}
	if sell.Direction() != DirectionSell {
		t.Errorf("expected SELL, got %q", sell.Direction())
	}
	if sell.EventType != "WHALE_CUM_15M_SELL" {
		t.Errorf("unexpected event type %q", sell.EventType)
	}
}
