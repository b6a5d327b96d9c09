package util

import (
	"strings"
	"testing"
)

func TestNewIDPrefix(t *testing.T) {
	id := NewID("ws")
	if !strings.HasPrefix(id, "ws_") {
		t.Fatalf("NewID(ws) = %q, want ws_ prefix", id)
	}
	if len(id) != len("ws_")+32 {
		t.Fatalf("NewID(ws) length = %d", len(id))
	}
	if NewID("ws") == id {
		t.Fatal("NewID returned duplicate ids")
	}
	if strings.Contains(NewID(""), "_") {
		t.Fatal("NewID without prefix should not contain separator")
	}
}

func TestNewTokenIsURLSafe(t *testing.T) {
	token := NewToken(32)
	if len(token) != 43 {
		t.Fatalf("NewToken(32) length = %d, want 43", len(token))
	}
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("NewToken() = %q is not URL safe", token)
	}
}
