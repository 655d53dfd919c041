package log

import (
	"log/slog"
	"testing"
)

func TestRecoverPanicRunsCleanup(t *testing.T) {
	Setup(false)
	if !Initialized() {
		t.Fatal("Setup did not initialize")
	}
	if _, ok := slog.Default().Handler().(*slog.TextHandler); ok {
		t.Error("default handler not replaced")
	}

	var cleaned bool
	func() {
		defer RecoverPanic("test", func() { cleaned = true })
		panic("boom")
	}()
	if !cleaned {
		t.Error("cleanup not called")
	}
}
