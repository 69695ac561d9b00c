package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	for _, raw := range []string{"processing", "shipped", "delivered", "cancelled"} {
		status, err := ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("ParseOrderStatus(%q): %v", raw, err)
		}
		if !status.IsValid() || status.String() != raw {
			t.Fatalf("unexpected status %q", status)
		}
	}
	if _, err := ParseOrderStatus("Processing"); err == nil {
		t.Fatal("expected case-sensitive parse to fail")
	}
	if OrderStatus("lost").IsValid() {
		t.Fatal("unexpected valid status")
	}
}

func TestParseSessionSource(t *testing.T) {
	if src, err := ParseSessionSource("remote"); err != nil || src != SessionSourceRemote {
		t.Fatalf("expected remote, got %q err=%v", src, err)
	}
	if src, err := ParseSessionSource("pending"); err != nil || src != SessionSourcePending {
		t.Fatalf("expected pending, got %q err=%v", src, err)
	}
	if _, err := ParseSessionSource(""); err == nil {
		t.Fatal("expected empty source to fail")
	}
}
