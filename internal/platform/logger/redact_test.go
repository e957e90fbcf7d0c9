package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsSensitiveKeys(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"email", "ana@example.cl",
		"reset_token", "abc",
		"company_rut", "76.086.428-5",
		"policy_id", "p-1",
	})
	if len(out) != 8 {
		t.Fatalf("len: want=8 got=%d", len(out))
	}
	for _, idx := range []int{1, 3, 5} {
		if out[idx] != redacted {
			t.Fatalf("value %d: want redacted got=%v", idx, out[idx])
		}
	}
	if out[7] != "p-1" {
		t.Fatalf("policy_id should pass through, got=%v", out[7])
	}
}

func TestSanitizeKVsHashesUserIDs(t *testing.T) {
	out := sanitizeKVs([]interface{}{"user_id", "7f7c9a0e"})
	got, ok := out[1].(string)
	if !ok || !strings.HasPrefix(got, "hash:") {
		t.Fatalf("user_id: want hash prefix got=%v", out[1])
	}
	if strings.Contains(got, "7f7c9a0e") {
		t.Fatalf("user_id leaked into hash: %s", got)
	}
}

func TestSanitizeKVsRedactsJWTValues(t *testing.T) {
	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	out := sanitizeKVs([]interface{}{"header", jwt})
	if out[1] != redacted {
		t.Fatalf("jwt-shaped value: want redacted got=%v", out[1])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("odd kv: got=%v", out)
	}
}
