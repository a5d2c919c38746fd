package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConvertFields(t *testing.T) {
	fields := convertFields("match_id", uint(7), 42, "answer", "dangling")
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Key != "match_id" {
		t.Fatalf("expected key match_id, got %q", fields[0].Key)
	}
	if fields[1].Key != "42" {
		t.Fatalf("expected stringified key 42, got %q", fields[1].Key)
	}

	errFields := convertFields("error", errors.New("boom"))
	if errFields[0].Type != zapcore.ErrorType {
		t.Fatalf("expected error field type, got %v", errFields[0].Type)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestWithAddsFieldsToEveryEntry(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := (&Logger{zap: zap.New(core)}).With("match_id", uint(9))

	l.Info("joined", "user_id", uint(3))
	l.Warn("left")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if got := e.ContextMap()["match_id"]; got != uint64(9) {
			t.Fatalf("%s: expected match_id 9, got %v", e.Message, got)
		}
	}
	if got := entries[0].ContextMap()["user_id"]; got != uint64(3) {
		t.Fatalf("expected user_id 3, got %v", got)
	}
}
