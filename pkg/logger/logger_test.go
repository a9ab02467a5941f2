package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestErrorIncludesContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-123"`)) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf}).Warn(context.Background(), "plain")
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("stack must be off by default; entry=%s", buf.String())
	}

	buf.Reset()
	New(Options{ServiceName: "test", Output: buf, WarnStack: true}).Warn(context.Background(), "stacked")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %v", lvl)
	}
}

func TestScopedFieldsDoNotLeak(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	base := context.Background()
	scoped := log.WithBookingID(log.WithProvider(base, "square"), "b-1")
	log.Info(scoped, "scoped")
	if !bytes.Contains(buf.Bytes(), []byte(`"booking_id":"b-1"`)) || !bytes.Contains(buf.Bytes(), []byte(`"payment_provider":"square"`)) {
		t.Fatalf("expected scoped fields; entry=%s", buf.String())
	}

	buf.Reset()
	log.Info(base, "plain")
	if bytes.Contains(buf.Bytes(), []byte("booking_id")) {
		t.Fatalf("parent context must not carry child fields; entry=%s", buf.String())
	}
}

func TestPaymentSecretsAreRedacted(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithFields(context.Background(), map[string]any{
		"client_secret":     "pi_123_secret_abc",
		"payment_intent_id": "pi_123",
	})
	log.Info(ctx, "intent created")

	if bytes.Contains(buf.Bytes(), []byte("secret_abc")) {
		t.Fatalf("client secret leaked; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"payment_intent_id":"pi_123"`)) {
		t.Fatalf("expected non-sensitive field; entry=%s", buf.String())
	}
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf, Format: FormatConsole}).Info(context.Background(), "hello")
	if bytes.HasPrefix(bytes.TrimSpace(buf.Bytes()), []byte("{")) {
		t.Fatalf("console format must not emit json; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("hello")) {
		t.Fatalf("expected message; entry=%s", buf.String())
	}
}

func TestNopDiscards(t *testing.T) {
	Nop().Error(context.Background(), "ignored", errors.New("boom"))
}
