package gcp

import "testing"

func TestClientOptions(t *testing.T) {
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if got := len(clientOptions()); got != 1 {
		t.Fatalf("ambient creds: want scope only, got %d opts", got)
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/creds.json")
	if got := len(clientOptions()); got != 2 {
		t.Fatalf("file creds: want 2 opts, got %d", got)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", `{"type":"service_account"}`)
	if got := len(clientOptions()); got != 2 {
		t.Fatalf("json creds: want 2 opts, got %d", got)
	}

	t.Setenv("STORAGE_EMULATOR_HOST", "http://127.0.0.1:4443")
	if got := len(clientOptions()); got != 1 {
		t.Fatalf("emulator: want no-auth only, got %d opts", got)
	}
}
