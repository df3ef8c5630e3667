package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	baseURL       = "http://127.0.0.1:18090"
	numWorkers    = 50
	testDuration  = 10 * time.Second
	numAuthors    = 200
	numCommunity  = 5
	maxRequestRPS = 5000
)

var communities = []string{"default", "golang", "devops", "databases", "security"}

var sampleContents = []string{
	"Thanks for sharing!",
	"Great post",
	"Nice",
	"totally agree",
	"In my experience the connection pool size matters more than the driver here. We run 4x cores and it holds up fine under load because the queries are short.",
	"Have you tried enabling the write-ahead log? Because the default journal mode blocks readers, you will see much better concurrency with WAL. Here's how we did it: https://example.com/wal-notes",
	"However, that approach breaks down once you shard the data. What happens when two nodes disagree about the epoch?",
	"Why does the scheduler pin goroutines to threads in this case?",
	"When I worked on a similar pipeline we batched the writes every 50ms and throughput tripled. The trade-off is slightly higher tail latency.",
	"Check the docs at https://pkg.go.dev/net/http for the transport settings, specifically MaxIdleConnsPerHost.",
}

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	fmt.Println("=== MQD Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s | Rate cap: %d rps\n", numWorkers, testDuration, maxRequestRPS)
	fmt.Printf("Authors: %d | Communities: %d\n\n", numAuthors, numCommunity)

	// Wait for server
	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/communities")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Phase 1: Seed observations
	fmt.Println("\n--- Phase 1: Seeding observations (POST /observe) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doObserve(rng)
	})

	// Wait for aggregation
	fmt.Println("\nWaiting 2s for aggregation...")
	time.Sleep(2 * time.Second)

	// Phase 2: Mixed read/write load
	fmt.Println("\n--- Phase 2: Mixed load (70% POST, 30% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.70:
			return doObserve(rng)
		case r < 0.82:
			return doGetAssessment(rng)
		case r < 0.90:
			return doGetAuthor(rng)
		case r < 0.96:
			return doGetAuthors(rng)
		default:
			return doGetCommunities()
		}
	})

	// Phase 3: Read-heavy load
	fmt.Println("\n--- Phase 3: Read-heavy load (10% POST, 90% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.10:
			return doObserve(rng)
		case r < 0.50:
			return doGetAssessment(rng)
		case r < 0.70:
			return doGetAuthor(rng)
		case r < 0.90:
			return doGetAuthors(rng)
		default:
			return doGetCommunities()
		}
	})
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})
	limiter := rate.NewLimiter(rate.Limit(maxRequestRPS), numWorkers)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					if err := limiter.Wait(context.Background()); err != nil {
						return
					}
					r := workFn(rng)
					totalOps.Add(1)
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func userID(rng *rand.Rand) string {
	return deriveUserID(rng.Intn(numAuthors) + 1)
}

// deriveUserID hashes a profile handle into a stable opaque ID, the way a
// page observer derives one when the platform exposes no member ID.
func deriveUserID(n int) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "member-%d", n)
	return fmt.Sprintf("u%08x", h.Sum32())
}

func doObserve(rng *rand.Rand) result {
	n := rng.Intn(numAuthors) + 1
	uid := deriveUserID(n)
	content := sampleContents[rng.Intn(len(sampleContents))]
	body := map[string]interface{}{
		"userId":   uid,
		"username": fmt.Sprintf("member-%d", n),
		"post": map[string]interface{}{
			"id":        fmt.Sprintf("post_%d", rng.Intn(100000)),
			"content":   content,
			"timestamp": time.Now().Add(-time.Duration(rng.Intn(72)) * time.Hour).Format(time.RFC3339),
			"engagement": map[string]int{
				"likes":    rng.Intn(20),
				"comments": rng.Intn(5),
				"shares":   rng.Intn(3),
			},
		},
	}
	if rng.Float64() < 0.6 {
		body["community"] = communities[rng.Intn(len(communities))]
	}

	data, _ := json.Marshal(body)
	start := time.Now()
	resp, err := httpClient.Post(baseURL+"/observe", "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	if err != nil {
		return result{"POST /observe", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"POST /observe", resp.StatusCode, lat, resp.StatusCode != 201}
}

func doGetAssessment(rng *rand.Rand) result {
	c := communities[rng.Intn(len(communities))]
	url := fmt.Sprintf("%s/assessment?c=%s&u=%s", baseURL, c, userID(rng))
	start := time.Now()
	resp, err := httpClient.Get(url)
	lat := time.Since(start)
	if err != nil {
		return result{"GET /assessment", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	// 404 is expected for authors not yet aggregated into this community
	ok := resp.StatusCode == 200 || resp.StatusCode == 404
	return result{"GET /assessment", resp.StatusCode, lat, !ok}
}

func doGetAuthor(rng *rand.Rand) result {
	c := communities[rng.Intn(len(communities))]
	url := fmt.Sprintf("%s/author?c=%s&u=%s", baseURL, c, userID(rng))
	start := time.Now()
	resp, err := httpClient.Get(url)
	lat := time.Since(start)
	if err != nil {
		return result{"GET /author", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	ok := resp.StatusCode == 200 || resp.StatusCode == 404
	return result{"GET /author", resp.StatusCode, lat, !ok}
}

func doGetAuthors(rng *rand.Rand) result {
	c := communities[rng.Intn(len(communities))]
	url := fmt.Sprintf("%s/authors?c=%s&limit=50", baseURL, c)
	start := time.Now()
	resp, err := httpClient.Get(url)
	lat := time.Since(start)
	if err != nil {
		return result{"GET /authors", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET /authors", resp.StatusCode, lat, resp.StatusCode != 200}
}

func doGetCommunities() result {
	start := time.Now()
	resp, err := httpClient.Get(baseURL + "/communities")
	lat := time.Since(start)
	if err != nil {
		return result{"GET /communities", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET /communities", resp.StatusCode, lat, resp.StatusCode != 200}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
