package chain

import "testing"

func TestConfirmationsSince(t *testing.T) {
	if got := confirmationsSince(100, 100); got != 1 {
		t.Fatalf("same block: got %d", got)
	}
	if got := confirmationsSince(100, 104); got != 5 {
		t.Fatalf("later block: got %d", got)
	}
	// A lagging node may report a head behind the receipt block.
	if got := confirmationsSince(100, 99); got != 0 {
		t.Fatalf("lagging head: got %d", got)
	}
}
