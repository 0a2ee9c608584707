package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RateMessage is one sample of the ingest rate pushed to stream clients.
type RateMessage struct {
	EventsPerSecond float64 `json:"events_per_second"`
	Total           uint64  `json:"total"`
}

// RateBroker aggregates created-event reports and pushes the ingest rate to
// server-sent-event clients once per interval.
type RateBroker struct {
	logger   *slog.Logger
	interval time.Duration
	clients  map[chan []byte]struct{}
	mu       sync.RWMutex
	reports  chan int
}

// NewRateBroker creates a RateBroker and starts its loop, which runs until ctx
// is done.
func NewRateBroker(ctx context.Context, logger *slog.Logger, interval time.Duration) *RateBroker {
	if interval <= 0 {
		interval = time.Second
	}
	b := &RateBroker{
		logger:   logger.With("component", "rate_broker"),
		interval: interval,
		clients:  make(map[chan []byte]struct{}),
		reports:  make(chan int, 1000),
	}
	go b.run(ctx)
	return b
}

// ServeHTTP streams RateMessage values as server-sent events.
func (b *RateBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	messages := make(chan []byte, 1)
	b.addClient(messages)
	defer b.removeClient(messages)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: rate\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ReportEvents records count newly created events. It never blocks the ingest
// path; reports are dropped when the broker falls behind.
func (b *RateBroker) ReportEvents(count int) {
	select {
	case b.reports <- count:
	default:
		b.logger.Warn("rate report channel is full, dropping report")
	}
}

func (b *RateBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Debug("rate stream client connected", "clients", len(b.clients))
}

func (b *RateBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Debug("rate stream client disconnected", "clients", len(b.clients))
	}
}

func (b *RateBroker) broadcast(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			// slow client, skip this sample
		}
	}
}

func (b *RateBroker) run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var window int
	var total uint64
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-b.reports:
			window += n
			total += uint64(n)
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			msg := RateMessage{Total: total}
			if elapsed > 0 {
				msg.EventsPerSecond = float64(window) / elapsed
			}

			data, err := json.Marshal(msg)
			if err != nil {
				b.logger.Error("failed to marshal rate message", "error", err)
				continue
			}
			b.broadcast(data)

			last = now
			window = 0
		}
	}
}
