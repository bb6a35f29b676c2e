package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"stewardship-cloud/internal/callback"
	"stewardship-cloud/internal/eventing"
)

const defaultKeep = 200

// fakeReceiver stands in for async callers and the downstream event sink.
type fakeReceiver struct {
	start    time.Time
	latency  time.Duration
	failRate float64
	keep     int

	mu         sync.Mutex
	byKind     map[string]int64
	byEvent    map[string]int64
	byStatus   map[int]int64
	totalCalls int64
	callbacks  []callback.Message
	events     []eventing.Envelope
	seenEvents map[string]struct{}
	duplicates int64
}

func main() {
	addr := getenvDefault("FAKE_RECEIVER_ADDR", ":18090")
	latencyMs := getenvIntDefault("FAKE_RECEIVER_LATENCY_MS", 0)
	failRate := getenvFloatDefault("FAKE_RECEIVER_FAIL_RATE", 0)
	keep := getenvIntDefault("FAKE_RECEIVER_KEEP", defaultKeep)

	srv := &fakeReceiver{
		start:      time.Now().UTC(),
		latency:    time.Duration(latencyMs) * time.Millisecond,
		failRate:   failRate,
		keep:       keep,
		byKind:     make(map[string]int64),
		byEvent:    make(map[string]int64),
		byStatus:   make(map[int]int64),
		seenEvents: make(map[string]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/metrics", srv.handleMetrics)
	mux.HandleFunc("/callbacks", srv.handleCallback)
	mux.HandleFunc("/events", srv.handleEvent)
	mux.HandleFunc("/received", srv.handleReceived)

	log.Printf("fake callback receiver listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func (s *fakeReceiver) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeReceiver) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]any{
		"started_at": s.start.Format(time.RFC3339),
		"total":      atomic.LoadInt64(&s.totalCalls),
		"by_kind":    s.byKind,
		"by_event":   s.byEvent,
		"by_status":  s.byStatus,
		"duplicates": s.duplicates,
	})
}

// handleCallback accepts async results posted by the webhook notifier.
func (s *fakeReceiver) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var msg callback.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.recordStatus(http.StatusBadRequest)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.delay()
	if status := s.pickStatus(); status != http.StatusNoContent {
		s.recordStatus(status)
		w.WriteHeader(status)
		return
	}

	s.mu.Lock()
	s.byKind[msg.Kind]++
	s.callbacks = appendBounded(s.callbacks, msg, s.keep)
	s.mu.Unlock()
	s.recordStatus(http.StatusNoContent)
	log.Printf("callback kind=%s delivered_at=%s", msg.Kind, msg.Delivered.Format(time.RFC3339))
	w.WriteHeader(http.StatusNoContent)
}

// handleEvent accepts outbox envelopes from the dispatcher. Redelivered
// envelopes are counted but acknowledged.
func (s *fakeReceiver) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var env eventing.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.EventID == "" {
		s.recordStatus(http.StatusBadRequest)
		http.Error(w, "invalid envelope", http.StatusBadRequest)
		return
	}
	s.delay()
	if status := s.pickStatus(); status != http.StatusNoContent {
		s.recordStatus(status)
		w.WriteHeader(status)
		return
	}

	s.mu.Lock()
	if _, ok := s.seenEvents[env.EventID]; ok {
		s.duplicates++
	} else {
		s.seenEvents[env.EventID] = struct{}{}
		s.byEvent[env.EventType]++
		s.events = appendBounded(s.events, env, s.keep)
	}
	s.mu.Unlock()
	s.recordStatus(http.StatusAccepted)
	log.Printf("event type=%s id=%s scheme=%s", env.EventType, env.EventID, env.SchemeID)
	w.WriteHeader(http.StatusAccepted)
}

func (s *fakeReceiver) handleReceived(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]any{
		"callbacks": s.callbacks,
		"events":    s.events,
	})
}

func (s *fakeReceiver) delay() {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
}

func (s *fakeReceiver) pickStatus() int {
	if s.failRate > 0 && rand.Float64() < s.failRate {
		return http.StatusBadGateway
	}
	return http.StatusNoContent
}

func (s *fakeReceiver) recordStatus(status int) {
	atomic.AddInt64(&s.totalCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byStatus[status]++
}

func appendBounded[T any](list []T, item T, keep int) []T {
	list = append(list, item)
	if keep > 0 && len(list) > keep {
		list = list[len(list)-keep:]
	}
	return list
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
