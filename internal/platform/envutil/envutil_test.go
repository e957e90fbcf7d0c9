package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "nope")
	if got := Int("ENVUTIL_INT", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	t.Setenv("ENVUTIL_INT", " 42 ")
	if got := Int("ENVUTIL_INT", 7); got != 42 {
		t.Fatalf("Int: want=42 got=%d", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("ENVUTIL_BOOL", "YES")
	if !Bool("ENVUTIL_BOOL", false) {
		t.Fatalf("Bool: want=true")
	}
	t.Setenv("ENVUTIL_BOOL", "maybe")
	if Bool("ENVUTIL_BOOL", false) {
		t.Fatalf("Bool: unknown value should use default")
	}
}

func TestSecondsAndList(t *testing.T) {
	t.Setenv("ENVUTIL_SECS", "90")
	if got := Seconds("ENVUTIL_SECS", time.Second); got != 90*time.Second {
		t.Fatalf("Seconds: got=%s", got)
	}
	t.Setenv("ENVUTIL_LIST", "a, ,b,")
	got := List("ENVUTIL_LIST", nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("List: got=%v", got)
	}
}
