package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type tag struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

type event struct {
	ID       string `json:"id"`
	KeyValue []tag  `json:"key_value"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "Base URL of the events service")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 1000, "Requests per second limit")
	externalIDs := flag.Int("ids", 100, "Number of distinct external ids to spread events over")
	key := flag.String("key", "load_test", "Tag key attached to every event")
	flag.Parse()

	log.Printf("Starting load test on %s", *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	if *externalIDs < 1 {
		*externalIDs = 1
	}
	pool := make([]string, *externalIDs)
	for i := range pool {
		pool[i] = uuid.NewString()
	}
	perID := make([]atomic.Int64, len(pool))

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100
	started := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{Timeout: 5 * time.Second}

			for n := workerID; ; n += *concurrency {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				idx := n % len(pool)
				value := strconv.Itoa(workerID)
				payload, err := json.Marshal(event{ID: pool[idx], KeyValue: []tag{{Key: *key, Value: &value}}})
				if err != nil {
					continue
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodPost, *baseURL+"/event", bytes.NewReader(payload))
				if err != nil {
					continue
				}
				req.Header.Set("Content-Type", "application/json")

				resp, err := client.Do(req)
				if err != nil {
					errorCount.Add(1)
					continue
				}
				if resp.StatusCode == http.StatusCreated {
					successCount.Add(1)
					perID[idx].Add(1)
				} else {
					errorCount.Add(1)
				}
				resp.Body.Close()
			}
		}(i)
	}

	wg.Wait()
	finished := time.Now()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (201 Created): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)

	// Counts for the first external id must match what this run created.
	from := started.Add(-time.Second).UnixMilli()
	to := finished.Add(time.Second).UnixMilli()
	got, err := queryCount(*baseURL, pool[0], *key, from, to)
	if err != nil {
		log.Printf("Count check failed: %v", err)
		return
	}
	log.Printf("Count check for %s: created %d, service reports %d", pool[0], perID[0].Load(), got)
}

func queryCount(baseURL, externalID, key string, from, to int64) (uint64, error) {
	q := url.Values{}
	q.Set("from", strconv.FormatInt(from, 10))
	q.Set("to", strconv.FormatInt(to, 10))
	q.Set("id", externalID)
	q.Set("key", key)
	q.Set("query_type", "count")

	resp, err := http.Get(baseURL + "/event?" + q.Encode())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body struct {
		Count uint64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Count, nil
}
