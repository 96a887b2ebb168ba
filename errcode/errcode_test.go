package errcode

import (
	"testing"

	"github.com/pkg/errors"
)

func TestOfPlainCode(t *testing.T) {
	if Of(NotFound) != NotFound {
		t.Fatalf("expected not_found, got %v", Of(NotFound))
	}
	if Of(nil) != OK {
		t.Fatalf("expected ok for nil")
	}
}

func TestOfWrapper(t *testing.T) {
	e := &E{C: RegisterFailed, Op: "register", Msg: "out of minors"}
	if Of(e) != RegisterFailed {
		t.Fatalf("expected register_failed, got %v", Of(e))
	}
	if e.Error() != "register_failed: out of minors" {
		t.Fatalf("unexpected message: %q", e.Error())
	}
}

func TestOfThroughCauseChain(t *testing.T) {
	err := errors.Wrap(NotFound, "parsing partition table")
	if Of(err) != NotFound {
		t.Fatalf("expected not_found through wrap, got %v", Of(err))
	}
	if !Is(err, NotFound) {
		t.Fatal("Is should see not_found through wrap")
	}
}

func TestOfUnknownError(t *testing.T) {
	if Of(errors.New("boom")) != Error {
		t.Fatal("expected generic fallback")
	}
}
