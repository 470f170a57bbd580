package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/streamio/streamio-go/internal/testpeer"
	"github.com/streamio/streamio-go/pkg/wire"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const seedYAML = `
listen: "127.0.0.1:0"
path: /stream
resources:
  /users/42:
    name: Ada
    version: 1
  /rooms:
    - id: 1
      title: lobby
`

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(seedYAML))
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	if seed.Path != "/stream" || seed.Instance != "streamio-peer" {
		t.Errorf("seed = %+v", seed)
	}
	if len(seed.Resources) != 2 {
		t.Errorf("got %d resources, want 2", len(seed.Resources))
	}
	if seed.Key() != nil {
		t.Error("Key() should be nil without key_env")
	}
}

func TestParseSeedInvalid(t *testing.T) {
	for _, doc := range []string{"path: stream", "resources: [1, 2]", "listen: [\n"} {
		if _, err := ParseSeed([]byte(doc)); err == nil {
			t.Errorf("ParseSeed(%q) succeeded, want error", doc)
		}
	}
}

func TestSeedKey(t *testing.T) {
	t.Setenv("PEER_TEST_KEY", "secret")
	seed := &Seed{KeyEnv: "PEER_TEST_KEY"}
	if string(seed.Key()) != "secret" {
		t.Errorf("Key() = %q", seed.Key())
	}
}

func TestSeedApplyReportsChanges(t *testing.T) {
	seed, err := ParseSeed([]byte(seedYAML))
	if err != nil {
		t.Fatal(err)
	}
	peer := testpeer.New()

	if got := seed.Apply(peer); !reflect.DeepEqual(got, []string{"/rooms", "/users/42"}) {
		t.Errorf("first Apply = %v", got)
	}
	if got := seed.Apply(peer); len(got) != 0 {
		t.Errorf("second Apply = %v, want nothing", got)
	}

	seed.Resources["/users/42"] = map[string]any{"name": "Ada", "version": 2}
	if got := seed.Apply(peer); !reflect.DeepEqual(got, []string{"/users/42"}) {
		t.Errorf("third Apply = %v", got)
	}
}

func TestSyncHandler(t *testing.T) {
	peer := testpeer.New()
	peer.Set("/users/42", map[string]any{"name": "Ada", "version": 1})
	handle := syncHandler(peer, discard)

	got, err := handle(&wire.SyncRequest{Method: wire.MethodPatch, URL: "/users/42", Data: map[string]any{"version": 2}})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	want := map[string]any{"name": "Ada", "version": 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("patch result = %v", got)
	}
	if data, _ := peer.Data("/users/42"); !reflect.DeepEqual(data, want) {
		t.Errorf("stored = %v", data)
	}

	if got, err := handle(&wire.SyncRequest{Method: wire.MethodRead, URL: "/users/42"}); err != nil || !reflect.DeepEqual(got, want) {
		t.Errorf("read = %v, %v", got, err)
	}

	if _, err := handle(&wire.SyncRequest{Method: wire.MethodUpdate, URL: "/rooms", Data: []any{"a"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := handle(&wire.SyncRequest{Method: wire.MethodPatch, URL: "/rooms", Data: map[string]any{"x": 1}}); !errors.Is(err, errNotDocument) {
		t.Errorf("patch of list: err = %v", err)
	}

	if got, err := handle(&wire.SyncRequest{Method: wire.MethodEmit, URL: "/rooms", Emit: "ping", Data: "hello"}); err != nil || got != "hello" {
		t.Errorf("emit = %v, %v", got, err)
	}

	if _, err := handle(&wire.SyncRequest{Method: wire.MethodRead, URL: "/missing"}); !errors.Is(err, testpeer.ErrUnknownResource) {
		t.Errorf("read missing: err = %v", err)
	}
	if _, err := handle(&wire.SyncRequest{Method: "upsert", URL: "/rooms"}); err == nil {
		t.Error("unknown method should fail")
	}
}

func TestAuthorize(t *testing.T) {
	key := []byte("secret")
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := authorize(ok, key, discard)

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"user_id": "u1"}).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + signed, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stream", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if authorize(ok, nil, discard) == nil {
		t.Error("authorize without key should pass through")
	}
}
