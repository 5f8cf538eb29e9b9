package payment

import (
	"strings"
	"testing"
)

func TestEncode_MatchesEncodeURIComponentWithPlus(t *testing.T) {
	cases := map[string]string{
		"Thanh toan don hang": "Thanh+toan+don+hang",
		"a&b=c":               "a%26b%3Dc",
		"https://x.vn/r?a=1":  "https%3A%2F%2Fx.vn%2Fr%3Fa%3D1",
		"it's (ok)!*~":        "it's+(ok)!*~",
		"Đơn":                 "%C4%90%C6%A1n",
	}
	for in, want := range cases {
		if got := Encode(in); got != want {
			t.Errorf("Encode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSortedQuery_SortsAndSkipsEmpty(t *testing.T) {
	got := SortedQuery(map[string]string{
		"vnp_TxnRef":    "abc",
		"vnp_Amount":    "6000000",
		"vnp_BankCode":  "",
		"vnp_OrderInfo": "pay order",
	})
	want := "vnp_Amount=6000000&vnp_OrderInfo=pay+order&vnp_TxnRef=abc"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSigner_KnownVector(t *testing.T) {
	// HMAC-SHA512(key="key", "The quick brown fox jumps over the lazy dog")
	want := "b42af09057bac1e2d41708e48a902e09b5ff7f12ab428a4fe86653c73dd248fb82f948a549f7b791a5b41915ee4d1ec3935357e4e2317250d0372afa2ebeeb3a"
	s := NewSigner("key")
	if got := s.Sign("The quick brown fox jumps over the lazy dog"); got != want {
		t.Fatalf("got %s", got)
	}
	if !s.Verify("The quick brown fox jumps over the lazy dog", strings.ToUpper(want)) {
		t.Fatal("uppercase signature must verify")
	}
	if s.Verify("The quick brown fox jumps over the lazy cat", want) {
		t.Fatal("altered data must not verify")
	}
	if s.Verify("x", "not-hex") {
		t.Fatal("garbage signature must not verify")
	}
}
