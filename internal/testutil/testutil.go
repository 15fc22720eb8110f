// Package testutil holds helpers shared by handler and middleware tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func NewTestRequestWithJSON(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON unmarshals a response body into T, failing the test on error.
func DecodeJSON[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode json %q: %v", body, err)
	}
	return out
}

func ParseJSONResponse(t *testing.T, body []byte) map[string]any {
	t.Helper()
	return DecodeJSON[map[string]any](t, body)
}

func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d (body: %s)", want, rr.Code, rr.Body.String())
	}
}

// AssertJSONContains compares the top-level key by its printed form, so
// numbers can be given as ints.
func AssertJSONContains(t *testing.T, body []byte, key string, want any) {
	t.Helper()
	got := ParseJSONResponse(t, body)
	if fmt.Sprint(got[key]) != fmt.Sprint(want) {
		t.Fatalf("expected %s=%v, got %v", key, want, got[key])
	}
}
