package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errTestBackend = errors.New("backend unavailable")

type testDoc struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func setupMultiLevel(t *testing.T) (*MultiLevelCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mlc := NewMultiLevelCache(NewRedisCacheWithClient(client))
	t.Cleanup(func() { mlc.Close() })
	return mlc, mr
}

func TestCopyValue(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		run  func(t *testing.T)
	}{
		{
			name: "string",
			run: func(t *testing.T) {
				dest := new(string)
				if err := copyValue("hello", dest); err != nil || *dest != "hello" {
					t.Errorf("copyValue() = %v, dest %q", err, *dest)
				}
			},
		},
		{
			name: "struct",
			run: func(t *testing.T) {
				src := testDoc{ID: "t1", Title: "task", Tags: []string{"a"}}
				var dest testDoc
				if err := copyValue(src, &dest); err != nil {
					t.Fatalf("copyValue() error = %v", err)
				}
				dest.Tags[0] = "mutated"
				if src.Tags[0] != "a" {
					t.Error("Expected the copy to not share memory with the source")
				}
			},
		},
		{
			name: "unmarshalable source",
			run: func(t *testing.T) {
				var dest string
				if err := copyValue(make(chan int), &dest); err == nil {
					t.Error("Expected an error for an unmarshalable source")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

func TestMultiLevelSetAndGet(t *testing.T) {
	mlc, _ := setupMultiLevel(t)

	doc := testDoc{ID: "t1", Title: "set up workstation"}
	if err := mlc.Set("tasks:id:t1", doc, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got testDoc
	if err := mlc.Get("tasks:id:t1", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "set up workstation" {
		t.Errorf("Expected the stored document, got %+v", got)
	}
}

func TestMultiLevelFallsThroughToL2(t *testing.T) {
	mlc, _ := setupMultiLevel(t)

	doc := testDoc{ID: "t1", Title: "task"}
	if err := mlc.Set("tasks:id:t1", doc, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Simulate a fresh process: L1 is empty but L2 survives.
	mlc.l1.Clear()

	var got testDoc
	if err := mlc.Get("tasks:id:t1", &got); err != nil {
		t.Fatalf("Expected an L2 hit, got %v", err)
	}
	if got.ID != "t1" {
		t.Errorf("Expected the L2 value, got %+v", got)
	}

	// The hit repopulates L1.
	if _, found := mlc.l1.Get("tasks:id:t1"); !found {
		t.Error("Expected the L2 hit promoted back into L1")
	}
}

func TestMultiLevelMiss(t *testing.T) {
	mlc, _ := setupMultiLevel(t)

	var got testDoc
	if err := mlc.Get("tasks:id:absent", &got); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}

	stats := mlc.GetMetrics().GetStats()
	if stats["misses"].(int64) != 1 {
		t.Errorf("Expected one recorded miss, got %v", stats["misses"])
	}
}

func TestMultiLevelDeletePattern(t *testing.T) {
	mlc, mr := setupMultiLevel(t)

	mlc.Set("tasks:id:t1", "a", time.Minute)
	mlc.Set("tasks:list:p1", "b", time.Minute)
	mlc.Set("users:roster", "c", time.Minute)

	if err := mlc.DeletePattern("tasks:*"); err != nil {
		t.Fatalf("DeletePattern() error = %v", err)
	}

	var dest string
	if err := mlc.Get("tasks:id:t1", &dest); err != ErrCacheMiss {
		t.Error("Expected task keys invalidated in both levels")
	}
	if err := mlc.Get("tasks:list:p1", &dest); err != ErrCacheMiss {
		t.Error("Expected list keys invalidated in both levels")
	}
	if err := mlc.Get("users:roster", &dest); err != nil {
		t.Errorf("Expected unrelated keys untouched, got %v", err)
	}
	if mr.Exists("tasks:id:t1") {
		t.Error("Expected the key gone from L2 as well")
	}
}

func TestMultiLevelSurvivesL2Outage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mlc := NewMultiLevelCache(NewRedisCacheWithClient(client))
	defer mlc.Close()

	if err := mlc.Set("tasks:id:t1", "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	mr.Close() // L2 goes away

	// L1 keeps serving.
	var got string
	if err := mlc.Get("tasks:id:t1", &got); err != nil {
		t.Fatalf("Expected L1 to keep serving through the outage, got %v", err)
	}
	if got != "value" {
		t.Errorf("Expected the L1 value, got %q", got)
	}

	// Writes still succeed against L1 only.
	if err := mlc.Set("tasks:id:t2", "other", time.Minute); err != nil {
		t.Errorf("Expected Set to degrade gracefully, got %v", err)
	}
}

func TestCircuitBreakerTripsOnL2Failures(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Minute})

	failing := func() error { return errTestBackend }
	for i := 0; i < 3; i++ {
		cb.Execute(failing)
	}

	if state := cb.GetStats()["state"]; state != "open" {
		t.Errorf("Expected the breaker open after repeated failures, got %v", state)
	}
	if err := cb.Execute(failing); err != ErrCircuitOpen {
		t.Errorf("Expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestCircuitBreakerIgnoresCacheMisses(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		cb.Execute(func() error { return ErrCacheMiss })
	}

	if state := cb.GetStats()["state"]; state != "closed" {
		t.Errorf("Expected misses to not count as failures, got state %v", state)
	}
}
