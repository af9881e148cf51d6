package eventsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollect_GathersBothBucketsUntilLastPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events/last/0":
			_, _ = w.Write([]byte(`{"events":[{"game_id":"g1","sport":"FOOTBALL","status":"FINISHED","home_team":"Sevilla","away_team":"Betis","score":"1-0"}],"hasNextPage":false}`))
		case "/events/next/0":
			_, _ = w.Write([]byte(`{"events":[{"game_id":"g2","sport":"FOOTBALL","status":"SCHEDULED","home_team":"Valencia","away_team":"Getafe"}],"hasNextPage":true}`))
		case "/events/next/1":
			_, _ = w.Write([]byte(`{"events":[{"game_id":"g3","sport":"TENNIS","status":"SCHEDULED","entrants":[{"name":"Alcaraz"}]}],"hasNextPage":false}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURLs: []string{server.URL}, Pages: 3, Timeout: time.Second})

	result, err := client.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !result.Complete {
		t.Fatal("expected complete scrape")
	}
	if len(result.Fragments) != 3 {
		t.Fatalf("expected 3 fragments, got=%d", len(result.Fragments))
	}
	for _, fragment := range result.Fragments {
		if fragment.Source == "" {
			t.Fatalf("fragment %q missing source attribution", fragment.GameID)
		}
	}
}

func TestCollect_StopsAtConfiguredPageBudget(t *testing.T) {
	t.Parallel()

	var nextPages int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/events/next/") {
			nextPages++
		}
		_, _ = w.Write([]byte(`{"events":[{"game_id":"g1","sport":"FOOTBALL","status":"SCHEDULED","home_team":"A","away_team":"B"}],"hasNextPage":true}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURLs: []string{server.URL}, Pages: 2, Timeout: time.Second})

	result, err := client.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if nextPages != 2 {
		t.Fatalf("expected 2 next pages fetched, got=%d", nextPages)
	}
	// 2 pages per bucket, 2 buckets.
	if len(result.Fragments) != 4 {
		t.Fatalf("expected 4 fragments, got=%d", len(result.Fragments))
	}
}

func TestCollect_FailedSourceMarksScrapeIncomplete(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events":[{"game_id":"g1","sport":"FOOTBALL","status":"SCHEDULED","home_team":"A","away_team":"B"}],"hasNextPage":false}`))
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	client := NewClient(ClientConfig{BaseURLs: []string{healthy.URL, broken.URL}, Pages: 1, Timeout: time.Second})

	result, err := client.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if result.Complete {
		t.Fatal("expected incomplete scrape when one source fails")
	}
	if result.FailedSources != 1 {
		t.Fatalf("expected 1 failed source, got=%d", result.FailedSources)
	}
	if len(result.Fragments) != 2 {
		t.Fatalf("expected healthy source fragments kept, got=%d", len(result.Fragments))
	}
}

func TestCollect_EmptyPageEndsBucket(t *testing.T) {
	t.Parallel()

	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		_, _ = w.Write([]byte(`{"events":[]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURLs: []string{server.URL}, Pages: 5, Timeout: time.Second})

	result, err := client.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(result.Fragments) != 0 {
		t.Fatalf("expected no fragments, got=%d", len(result.Fragments))
	}
	if len(calls) != 2 {
		t.Fatalf("expected one call per bucket, got=%v", calls)
	}
}

func TestCollect_SessionsBucketOnlyWhenEnabled(t *testing.T) {
	t.Parallel()

	var sessionCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/events/sessions/") {
			sessionCalls++
			_, _ = w.Write([]byte(`{"events":[{"game_id":"s1","sport":"MOTORSPORT","status":"SCHEDULED","competition":"F1 GP","entrants":[{"name":"Sainz"}]}],"hasNextPage":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"events":[]}`))
	}))
	defer server.Close()

	withoutSessions := NewClient(ClientConfig{BaseURLs: []string{server.URL}, Pages: 1, Timeout: time.Second})
	result, err := withoutSessions.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if sessionCalls != 0 || len(result.Fragments) != 0 {
		t.Fatalf("sessions bucket fetched while disabled: calls=%d fragments=%d", sessionCalls, len(result.Fragments))
	}

	withSessions := NewClient(ClientConfig{BaseURLs: []string{server.URL}, Pages: 1, Timeout: time.Second, IncludeSessions: true})
	result, err = withSessions.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if sessionCalls != 1 {
		t.Fatalf("expected one sessions page, got=%d", sessionCalls)
	}
	if len(result.Fragments) != 1 || result.Fragments[0].GameID != "s1" {
		t.Fatalf("unexpected fragments %+v", result.Fragments)
	}
}

func TestCollect_ResolvesLocalStartAgainstConfiguredZone(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events/last/0" {
			_, _ = w.Write([]byte(`{"events":[` +
				`{"game_id":"g1","sport":"FOOTBALL","status":"SCHEDULED","home_team":"A","away_team":"B","start_local":"26/08/2026 18:00"},` +
				`{"game_id":"g2","sport":"FOOTBALL","status":"SCHEDULED","home_team":"C","away_team":"D","start_local":"not a date"}` +
				`],"hasNextPage":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"events":[]}`))
	}))
	defer server.Close()

	madrid := time.FixedZone("CEST", 2*60*60)
	client := NewClient(ClientConfig{BaseURLs: []string{server.URL}, Pages: 1, Timeout: time.Second, Location: madrid})

	result, err := client.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(result.Fragments) != 1 {
		t.Fatalf("expected the unparseable fragment dropped, got=%d", len(result.Fragments))
	}
	got := result.Fragments[0]
	if got.GameID != "g1" {
		t.Fatalf("unexpected fragment %+v", got)
	}
	want := time.Date(2026, time.August, 26, 16, 0, 0, 0, time.UTC)
	if !got.StartAt.Equal(want) {
		t.Fatalf("start mismatch: got=%v want=%v", got.StartAt, want)
	}
}

func TestCollect_NoSourcesIsCompleteNoop(t *testing.T) {
	t.Parallel()

	client := NewClient(ClientConfig{Timeout: time.Second})

	result, err := client.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !result.Complete || len(result.Fragments) != 0 {
		t.Fatalf("expected empty complete result, got=%+v", result)
	}
}
