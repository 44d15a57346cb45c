package ratio

import (
	"math/big"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestPriceOf(t *testing.T) {
	if got := PriceOf(2, ptr(1500)); got != 3000 {
		t.Fatalf("price: got %v", got)
	}
	if got := PriceOf(0.5, ptr(1500)); got != 750 {
		t.Fatalf("price: got %v", got)
	}
	if got := PriceOf(0, ptr(1500)); got != 0 {
		t.Fatalf("zero amount: got %v", got)
	}
	if got := PriceOf(100, nil); got != 0 {
		t.Fatalf("nil price: got %v", got)
	}
}

func TestSafeParseNumber(t *testing.T) {
	if v, ok := SafeParseNumber("123.45"); !ok || v != 123.45 {
		t.Fatalf("parse: %v %v", v, ok)
	}
	if v, ok := SafeParseNumber("$1,000.5"); !ok || v != 1000.5 {
		t.Fatalf("parse sanitized: %v %v", v, ok)
	}
	if v, ok := SafeParseNumber("abc"); !ok || v != 0 {
		t.Fatalf("parse empty after sanitize: %v %v", v, ok)
	}
	if _, ok := SafeParseNumber("1.2.3"); ok {
		t.Fatalf("expected unparsable")
	}
}

func TestPairedAmount(t *testing.T) {
	cases := []struct {
		amount string
		side   int
		ratio  *float64
		want   Pair
	}{
		{"100", 0, ptr(2), Pair{Amount: "100", PairedAmount: "50"}},
		{"50", 1, ptr(2), Pair{Amount: "50", PairedAmount: "100"}},
		{"1", 0, ptr(2), Pair{Amount: "1", PairedAmount: "0.5"}},
		{"2", 1, ptr(2), Pair{Amount: "2", PairedAmount: "4"}},
		{"", 0, ptr(2), Pair{Amount: "", PairedAmount: ""}},
		{"100", 0, nil, Pair{Amount: "100", PairedAmount: ""}},
		{"100", 0, ptr(0), Pair{Amount: "100", PairedAmount: ""}},
		{"100", 2, ptr(2), Pair{Amount: "100", PairedAmount: ""}},
	}
	for _, tc := range cases {
		got := PairedAmount(tc.amount, tc.side, tc.ratio)
		if got != tc.want {
			t.Fatalf("paired %q side %d: got %+v want %+v", tc.amount, tc.side, got, tc.want)
		}
	}
}

// Unparsable input yields "0", unlike the unknown-ratio case which yields "".
func TestPairedAmountUnparsable(t *testing.T) {
	got := PairedAmount("1.2.3", 0, ptr(2))
	if got.PairedAmount != "0" || got.Amount != "1.2.3" {
		t.Fatalf("unparsable: got %+v", got)
	}
	unknown := PairedAmount("1.2.3", 0, nil)
	if unknown.PairedAmount != "" {
		t.Fatalf("unknown ratio: got %+v", unknown)
	}
}

func TestVaultRatio(t *testing.T) {
	r0, _ := new(big.Int).SetString("2000000000000000000", 10)
	r1 := big.NewInt(1000000)
	got := VaultRatio(r0, r1, 18, 6)
	if got == nil || *got != 2 {
		t.Fatalf("ratio: got %v", got)
	}
	if VaultRatio(r0, big.NewInt(0), 18, 6) != nil {
		t.Fatalf("expected nil ratio for empty reserve")
	}
	if VaultRatio(nil, r1, 18, 6) != nil {
		t.Fatalf("expected nil ratio for missing reserve")
	}
}

func TestFormatUSD(t *testing.T) {
	if got := FormatUSD(1234.5); got != "$1234.50" {
		t.Fatalf("usd: got %s", got)
	}
	if got := FormatUSD(0); got != "$0.00" {
		t.Fatalf("usd: got %s", got)
	}
}
