package apierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeAndKindSurviveWrapping(t *testing.T) {
	base := Conflict(CodeInsufficientCoins, "ledger.apply", "balance too low")
	wrapped := fmt.Errorf("purchase: %w", base)

	if got := CodeOf(wrapped); got != CodeInsufficientCoins {
		t.Fatalf("CodeOf: want=%s got=%s", CodeInsufficientCoins, got)
	}
	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("KindOf: want=%s got=%s", KindConflict, got)
	}
	if !Is(wrapped, CodeInsufficientCoins) {
		t.Fatalf("Is: expected true")
	}
}

func TestKindOfForeignErrorIsInternal(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("KindOf: want=%s got=%s", KindInternal, got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil): want empty got=%s", got)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(KindTransient, CodeRetryable, "op", nil); err != nil {
		t.Fatalf("Wrap(nil): want nil got=%v", err)
	}
}

func TestMessagesNeverExposeCodes(t *testing.T) {
	for _, code := range []string{CodeInsufficientCoins, CodeAlreadyClaimed, CodeOutOfStock, "something_new"} {
		if msg := Message(code); msg == "" || msg == code {
			t.Fatalf("Message(%s): got %q", code, msg)
		}
	}
}
