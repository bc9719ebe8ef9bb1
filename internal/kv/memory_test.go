package kv

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryStoreIncrDecr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if n, err := s.Incr(ctx, "k"); err != nil || n != 1 {
		t.Fatalf("Incr = (%d, %v), want (1, nil)", n, err)
	}
	if n, err := s.Incr(ctx, "k"); err != nil || n != 2 {
		t.Fatalf("Incr = (%d, %v), want (2, nil)", n, err)
	}
	if n, err := s.Decr(ctx, "k"); err != nil || n != 1 {
		t.Fatalf("Decr = (%d, %v), want (1, nil)", n, err)
	}
	if n, err := s.Get(ctx, "k"); err != nil || n != 1 {
		t.Fatalf("Get = (%d, %v), want (1, nil)", n, err)
	}
}

func TestMemoryStoreMissingKeyReadsZero(t *testing.T) {
	s := NewMemoryStore()
	if n, err := s.Get(context.Background(), "absent"); err != nil || n != 0 {
		t.Fatalf("Get = (%d, %v), want (0, nil)", n, err)
	}
}

func TestMemoryStoreSetOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 5; i++ {
		if _, err := s.Incr(ctx, "k"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Set(ctx, "k", 1); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Get(ctx, "k"); n != 1 {
		t.Fatalf("Get after Set = %d, want 1", n)
	}
}

func TestMemoryStoreConcurrentIncr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := s.Incr(ctx, "k"); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if n, _ := s.Get(ctx, "k"); n != 1000 {
		t.Fatalf("Get = %d, want 1000", n)
	}
}
