// Command flood stress tests a scriptport server with concurrent clients.
//
// Connections are served one at a time, so concurrent senders queue up on
// the accept backlog. The test verifies that every command still lands
// exactly once in the shared namespace and reports response latencies.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"scriptport"
	"scriptport/client"
)

const (
	evalWorkers  = 5
	evalIters    = 100
	queueIters   = 50
	tickInterval = 20 * time.Millisecond
)

func main() {
	fmt.Println("🔥 scriptport Concurrent Client Stress Test")
	fmt.Println("This runs concurrent evaluations and queued scripts against one server")
	fmt.Println()

	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
		scriptport.WithTickInterval(tickInterval),
	)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Stop()

	addr := srv.Addr()
	fmt.Printf("📡 Server listening on %s\n", addr)

	fmt.Println("📝 Seeding one counter per worker...")
	for w := 0; w < evalWorkers; w++ {
		if _, err := client.Send(addr, fmt.Sprintf("w%d = 0", w)); err != nil {
			log.Fatalf("Failed to seed counter w%d: %v", w, err)
		}
	}

	scriptPath := filepath.Join(os.TempDir(), "scriptport-flood.lua")
	if err := os.WriteFile(scriptPath, []byte("queued = (queued or 0) + 1\n"), 0o644); err != nil {
		log.Fatalf("Failed to write script: %v", err)
	}
	defer os.Remove(scriptPath)

	fmt.Println("🚀 Starting workers...")

	var wg sync.WaitGroup

	var mutex sync.Mutex
	latencies := make([]time.Duration, 0, evalWorkers*evalIters)
	failures := make([]string, 0)

	// Evaluation workers, each incrementing its own counter
	for w := 0; w < evalWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			command := fmt.Sprintf("w%d = w%d + 1", workerID, workerID)
			for i := 0; i < evalIters; i++ {
				start := time.Now()
				resp, err := client.Send(addr, command)
				elapsed := time.Since(start)

				mutex.Lock()
				if err != nil {
					failures = append(failures, fmt.Sprintf("worker %d iter %d: %v", workerID, i, err))
				} else if resp != "Command executed successfully" {
					failures = append(failures, fmt.Sprintf("worker %d iter %d: unexpected response %q", workerID, i, resp))
				} else {
					latencies = append(latencies, elapsed)
				}
				mutex.Unlock()
			}
		}(w)
	}

	// Queue worker flooding the drain cycle with script paths
	wg.Add(1)
	go func() {
		defer wg.Done()

		for i := 0; i < queueIters; i++ {
			resp, err := client.Send(addr, scriptPath)

			mutex.Lock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("queue iter %d: %v", i, err))
			} else if resp != "Script queued for execution" {
				failures = append(failures, fmt.Sprintf("queue iter %d: unexpected response %q", i, resp))
			}
			mutex.Unlock()

			time.Sleep(time.Millisecond)
		}
	}()

	wg.Wait()

	// Let the drain cycle finish whatever is still queued
	time.Sleep(10 * tickInterval)

	fmt.Println("\n📊 Analysis of Results:")

	verdictOK := true

	// Every increment must have landed exactly once
	for w := 0; w < evalWorkers; w++ {
		check := fmt.Sprintf("assert(w%d == %d)", w, evalIters)
		resp, err := client.Send(addr, check)
		if err != nil {
			fmt.Printf("  ⚠️  w%d: check failed to send: %v\n", w, err)
			verdictOK = false
			continue
		}
		if resp != "Command executed successfully" {
			fmt.Printf("  ⚠️  w%d: LOST UPDATES, %s answered %q\n", w, check, resp)
			verdictOK = false
		} else {
			fmt.Printf("  ✅ w%d reached %d\n", w, evalIters)
		}
	}

	// Every queued script must have run
	resp, err := client.Send(addr, fmt.Sprintf("assert(queued == %d)", queueIters))
	if err != nil || resp != "Command executed successfully" {
		fmt.Printf("  ⚠️  queued scripts incomplete (resp=%q err=%v)\n", resp, err)
		verdictOK = false
	} else {
		fmt.Printf("  ✅ all %d queued scripts executed\n", queueIters)
	}

	mutex.Lock()
	printLatencies(latencies)
	if len(failures) > 0 {
		verdictOK = false
		fmt.Printf("\nFailures: %d\n", len(failures))
		for i, f := range failures {
			if i >= 5 {
				fmt.Printf("  ... and %d more\n", len(failures)-5)
				break
			}
			fmt.Printf("  %d: %s\n", i+1, f)
		}
	}
	mutex.Unlock()

	info := srv.GetInfo()
	fmt.Printf("\nServer counters: scripts_executed=%v drain_passes=%v\n",
		info["scripts_executed"], info["drain_passes"])

	if verdictOK {
		fmt.Println("\n✅ CONSISTENT: every command landed exactly once")
	} else {
		fmt.Println("\n⚠️  INCONSISTENCY DETECTED: see failures above")
	}

	fmt.Println("\n🔚 Stress test completed")
}

func printLatencies(latencies []time.Duration) {
	if len(latencies) == 0 {
		fmt.Println("\nNo successful calls to measure")
		return
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p50 := sorted[len(sorted)/2]
	p95 := sorted[len(sorted)*95/100]
	max := sorted[len(sorted)-1]

	fmt.Printf("\nLatencies over %d calls: p50=%v p95=%v max=%v\n", len(sorted), p50, p95, max)
}
