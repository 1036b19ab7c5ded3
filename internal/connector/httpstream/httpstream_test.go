package httpstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNextStreamsLineDelimitedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("missing auth header, got %q", got)
		}
		fmt.Fprintln(w, `{"id":"1","text":"first"}`)
		fmt.Fprintln(w)
		fmt.Fprintln(w, `{"id":"2","text":"second"}`)
	}))
	defer srv.Close()

	c, err := New(Config{
		StreamURL: srv.URL,
		LookupURL: srv.URL + "/lookup",
		Headers:   map[string]string{"Authorization": "Bearer token-123"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	x, err := c.Next(context.Background())
	if err != nil || x.Field("id") != "1" {
		t.Fatalf("first event = %v (%v)", x, err)
	}
	// The blank keep-alive line is skipped.
	x, err = c.Next(context.Background())
	if err != nil || x.Field("id") != "2" {
		t.Fatalf("second event = %v (%v)", x, err)
	}
	if _, err := c.Next(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF at stream end, got %v", err)
	}
}

func TestNextFailsOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(Config{StreamURL: srv.URL, LookupURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Next(context.Background())
	if err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Fatalf("expected an HTTP 401 error, got %v", err)
	}
}

func TestFetchLabelsSendsBatchAndOmitsAbsentIds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query().Get("ids")
		if ids != "a,b,c" {
			t.Errorf("unexpected ids param %q", ids)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"a": 5, "c": 7})
	}))
	defer srv.Close()

	c, err := New(Config{StreamURL: srv.URL, LookupURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	labels, err := c.FetchLabels(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("FetchLabels: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels, got %v", labels)
	}
	if _, ok := labels["b"]; ok {
		t.Fatalf("absent id must stay absent, got %v", labels["b"])
	}
}

func TestSetupRulesReplacesExistingRules(t *testing.T) {
	var deleted, added bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{{"id": "old-rule"}},
			})
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			if strings.Contains(string(body), "delete") {
				if !strings.Contains(string(body), "old-rule") {
					t.Errorf("delete payload missing old rule id: %s", body)
				}
				deleted = true
				w.WriteHeader(http.StatusOK)
			} else {
				if !strings.Contains(string(body), "paris lang:fr") {
					t.Errorf("add payload missing rule value: %s", body)
				}
				added = true
				w.WriteHeader(http.StatusCreated)
			}
		}
	}))
	defer srv.Close()

	c, err := New(Config{
		StreamURL: srv.URL,
		LookupURL: srv.URL,
		RulesURL:  srv.URL + "/rules",
		Rules:     []Rule{{Value: "paris lang:fr", Tag: "Paris fr"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.SetupRules(context.Background()); err != nil {
		t.Fatalf("SetupRules: %v", err)
	}
	if !deleted || !added {
		t.Fatalf("expected delete and add calls, got deleted=%v added=%v", deleted, added)
	}
}
