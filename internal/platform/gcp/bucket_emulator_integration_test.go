package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

func TestArchiveStoreEmulatorRoundTrip(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("RUN_GCS_EMULATOR_INTEGRATION")), "true") {
		t.Skip("set RUN_GCS_EMULATOR_INTEGRATION=true to run emulator integration tests")
	}

	emulatorHost := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST"))
	if emulatorHost == "" {
		emulatorHost = "http://127.0.0.1:4443"
	}
	emulatorHost = strings.TrimRight(emulatorHost, "/")

	if !isEmulatorReachable(t, emulatorHost) {
		t.Skipf("storage emulator not reachable at %s", emulatorHost)
	}

	bucket := fmt.Sprintf("politicas-it-%d", time.Now().UnixNano())
	createBucketIfMissing(t, emulatorHost, bucket)
	t.Setenv("STORAGE_EMULATOR_HOST", emulatorHost)

	ctx := context.Background()
	store, err := NewArchiveStore(ctx, logger.Nop(), bucket)
	if err != nil {
		t.Fatalf("NewArchiveStore: %v", err)
	}
	defer store.Close()

	key := "exports/it/politica.html"
	if err := store.Put(ctx, key, "text/html; charset=utf-8", []byte("<h1>Política</h1>")); err != nil {
		t.Fatalf("Put(%s): %v", key, err)
	}
	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	if string(got) != "<h1>Política</h1>" {
		t.Fatalf("Get(%s): got=%q", key, got)
	}
	if _, err := store.Get(ctx, "exports/it/missing.pdf"); err == nil {
		t.Fatalf("Get(missing): want error")
	}
}

func TestNewArchiveStoreRequiresBucket(t *testing.T) {
	if _, err := NewArchiveStore(context.Background(), logger.Nop(), "  "); err == nil {
		t.Fatalf("want error for empty bucket")
	}
}

func isEmulatorReachable(t *testing.T, emulatorHost string) bool {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(emulatorHost + "/storage/v1/b?project=local-dev")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func createBucketIfMissing(t *testing.T, emulatorHost string, bucket string) {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"name": bucket})
	if err != nil {
		t.Fatalf("json.Marshal(bucket): %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(
		http.MethodPost,
		emulatorHost+"/storage/v1/b?project=local-dev",
		bytes.NewReader(payload),
	)
	if err != nil {
		t.Fatalf("http.NewRequest(create bucket): %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("create bucket %q: %v", bucket, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusConflict {
		return
	}
	b, _ := io.ReadAll(resp.Body)
	t.Fatalf("create bucket %q failed: status=%d body=%s", bucket, resp.StatusCode, strings.TrimSpace(string(b)))
}
