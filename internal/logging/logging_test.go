package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestEnsureRunIDIsStable(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", id, err)
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id || RunIDFromContext(ctx2) != id {
		t.Fatalf("EnsureRunID changed id %q -> %q", id, id2)
	}
}

func TestJSONLoggerCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})
	ctx := ContextWithRunID(context.Background(), "run-1")

	log.With(String("component", "cgb")).Debug(ctx, "predicted",
		Int("bins", 3), Float("total", 1.5), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for key, want := range map[string]any{
		"msg":       "predicted",
		"component": "cgb",
		"run_id":    "run-1",
		"bins":      float64(3),
		"total":     1.5,
		"error":     "boom",
	} {
		if rec[key] != want {
			t.Fatalf("%s = %v, want %v", key, rec[key], want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatalf("warn not logged")
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background()).(noopLogger); !ok {
		t.Fatalf("FromContext without logger should be Noop")
	}
	l := New(Config{Output: &bytes.Buffer{}})
	if got := FromContext(ContextWithLogger(context.Background(), l)); got != l {
		t.Fatalf("FromContext returned %v, want stored logger", got)
	}
}
