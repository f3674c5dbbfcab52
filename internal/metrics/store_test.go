// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"sync"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestStoreAdd(t *testing.T) {
	t.Run("retains records up to capacity", func(t *testing.T) {
		store := NewStore(3, "flash", "pro")
		for i := 0; i < 3; i++ {
			store.Add(Record{TraceID: fmt.Sprintf("t%d", i)})
		}
		if store.Len() != 3 {
			t.Fatalf("expected 3 records, got %d", store.Len())
		}
	})

	t.Run("evicts oldest first when over capacity", func(t *testing.T) {
		store := NewStore(3, "flash", "pro")
		for i := 0; i < 5; i++ {
			store.Add(Record{TraceID: fmt.Sprintf("t%d", i)})
		}
		records := store.Records()
		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}
		if records[0].TraceID != "t2" || records[2].TraceID != "t4" {
			t.Errorf("expected t2..t4, got %s..%s", records[0].TraceID, records[2].TraceID)
		}
	})

	t.Run("defaults to 1000 records on non-positive capacity", func(t *testing.T) {
		store := NewStore(0, "flash", "pro")
		for i := 0; i < 1500; i++ {
			store.Add(Record{LatencyMS: int64(i)})
		}
		records := store.Records()
		if len(records) != 1000 {
			t.Fatalf("expected 1000 records, got %d", len(records))
		}
		if records[0].LatencyMS != 500 {
			t.Errorf("expected oldest surviving record to be 500, got %d", records[0].LatencyMS)
		}
		if records[999].LatencyMS != 1499 {
			t.Errorf("expected newest record to be 1499, got %d", records[999].LatencyMS)
		}
	})
}

func TestStoreSnapshot(t *testing.T) {
	t.Run("empty buffer yields zero summary", func(t *testing.T) {
		store := NewStore(10, "flash", "pro")
		sum := store.Snapshot()
		if sum.TotalRequests != 0 || sum.SuccessRate != 0 || sum.AvgLatencyMS != 0 {
			t.Errorf("expected zero summary, got %+v", sum)
		}
	})

	t.Run("aggregates success, fallback and latency", func(t *testing.T) {
		store := NewStore(10, "flash", "pro")
		store.Add(Record{ChosenModel: "relay-flash", LatencyMS: 100, Confidence: floatPtr(0.9)})
		store.Add(Record{ChosenModel: "relay-flash", LatencyMS: 300, FallbackUsed: true, Confidence: floatPtr(0.7)})
		store.Add(Record{ChosenModel: "relay-pro", LatencyMS: 200, Error: "backend timeout"})

		sum := store.Snapshot()
		if sum.TotalRequests != 3 {
			t.Fatalf("expected 3 total, got %d", sum.TotalRequests)
		}
		if sum.SuccessCount != 2 || sum.ErrorCount != 1 {
			t.Errorf("expected 2 successes and 1 error, got %d/%d", sum.SuccessCount, sum.ErrorCount)
		}
		if got := sum.SuccessRate; got < 0.666 || got > 0.667 {
			t.Errorf("unexpected success rate %f", got)
		}
		if got := sum.FallbackRate; got < 0.333 || got > 0.334 {
			t.Errorf("unexpected fallback rate %f", got)
		}
		if sum.AvgLatencyMS != 200 {
			t.Errorf("expected avg latency 200, got %f", sum.AvgLatencyMS)
		}
	})

	t.Run("averages confidence only over records that report it", func(t *testing.T) {
		store := NewStore(10, "flash", "pro")
		store.Add(Record{Confidence: floatPtr(0.8)})
		store.Add(Record{Confidence: floatPtr(0.6)})
		store.Add(Record{})

		sum := store.Snapshot()
		if got := sum.AvgConfidence; got < 0.699 || got > 0.701 {
			t.Errorf("expected avg confidence 0.7, got %f", got)
		}
	})

	t.Run("buckets chosen model into ab counts", func(t *testing.T) {
		store := NewStore(10, "flash", "pro")
		store.Add(Record{ChosenModel: "relay-flash"})
		store.Add(Record{ChosenModel: "relay-flash"})
		store.Add(Record{ChosenModel: "relay-pro"})

		sum := store.Snapshot()
		if sum.ABPrimaryCount != 2 || sum.ABFallbackCount != 1 {
			t.Errorf("expected 2/1 ab counts, got %d/%d", sum.ABPrimaryCount, sum.ABFallbackCount)
		}
	})

	t.Run("counts shadow runs", func(t *testing.T) {
		store := NewStore(10, "flash", "pro")
		store.Add(Record{ShadowRan: true})
		store.Add(Record{ShadowRan: true})
		store.Add(Record{})

		if sum := store.Snapshot(); sum.ShadowRequests != 2 {
			t.Errorf("expected 2 shadow requests, got %d", sum.ShadowRequests)
		}
	})
}

func TestStoreReset(t *testing.T) {
	store := NewStore(10, "flash", "pro")
	store.Add(Record{})
	store.Add(Record{})
	store.Reset()
	if store.Len() != 0 {
		t.Fatalf("expected empty store after reset, got %d", store.Len())
	}
}

func TestStoreConcurrentAdd(t *testing.T) {
	store := NewStore(100, "flash", "pro")
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				store.Add(Record{TraceID: fmt.Sprintf("g%d-%d", g, i), LatencyMS: 1})
				store.Snapshot()
			}
		}(g)
	}
	wg.Wait()

	if store.Len() != 100 {
		t.Fatalf("expected buffer pinned at capacity 100, got %d", store.Len())
	}
	if sum := store.Snapshot(); sum.AvgLatencyMS != 1 {
		t.Errorf("expected avg latency 1, got %f", sum.AvgLatencyMS)
	}
}
