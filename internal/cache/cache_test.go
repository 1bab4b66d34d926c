package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestStore_GetOrBuild(t *testing.T) {
	s := NewStore[string, int]()
	builds := 0
	build := func() (int, error) {
		builds++
		return 42, nil
	}

	v, built, err := s.GetOrBuild("a", build)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !built || v != 42 {
		t.Fatalf("first call: got (%d, %v), want (42, true)", v, built)
	}

	v, built, err = s.GetOrBuild("a", build)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built || v != 42 {
		t.Fatalf("second call: got (%d, %v), want (42, false)", v, built)
	}
	if builds != 1 {
		t.Errorf("expected 1 build, got %d", builds)
	}

	stats := s.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Len != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if got := stats.HitRate(); got != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", got)
	}
}

func TestStore_FailedBuildNotStored(t *testing.T) {
	s := NewStore[string, int]()
	errBoom := errors.New("boom")

	_, _, err := s.GetOrBuild("k", func() (int, error) { return 0, errBoom })
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("failed build must not be stored, len=%d", s.Len())
	}

	v, built, err := s.GetOrBuild("k", func() (int, error) { return 7, nil })
	if err != nil || !built || v != 7 {
		t.Fatalf("retry: got (%d, %v, %v)", v, built, err)
	}
}

func TestStore_ConcurrentBuildOnce(t *testing.T) {
	s := NewStore[int, int]()
	var builds atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.GetOrBuild(1, func() (int, error) {
				builds.Add(1)
				return 1, nil
			})
		}()
	}
	wg.Wait()

	if n := builds.Load(); n != 1 {
		t.Errorf("expected exactly 1 build, got %d", n)
	}
	if st := s.Stats(); st.Hits+st.Misses != 32 {
		t.Errorf("expected 32 lookups, got %+v", st)
	}
}

func TestStore_RangeInsertionOrder(t *testing.T) {
	s := NewStore[string, int]()
	for i, k := range []string{"c", "a", "b"} {
		_, _, _ = s.GetOrBuild(k, func() (int, error) { return i, nil })
	}

	var keys []string
	s.Range(func(k string, _ int) { keys = append(keys, k) })
	if len(keys) != 3 || keys[0] != "c" || keys[1] != "a" || keys[2] != "b" {
		t.Errorf("Range order = %v, want [c a b]", keys)
	}

	s.Clear()
	if s.Len() != 0 || s.Stats().Misses != 0 {
		t.Errorf("Clear did not reset store: %+v", s.Stats())
	}
	if _, ok := s.Get("a"); ok {
		t.Error("Get after Clear should miss")
	}
}

func TestStore_DeleteFunc(t *testing.T) {
	s := NewStore[int, int]()
	for i := 0; i < 6; i++ {
		_, _, _ = s.GetOrBuild(i, func() (int, error) { return i * 10, nil })
	}

	removed := s.DeleteFunc(func(k, _ int) bool { return k%2 == 1 })
	if len(removed) != 3 || removed[0] != 10 || removed[2] != 50 {
		t.Errorf("removed = %v, want [10 30 50]", removed)
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}

	var keys []int
	s.Range(func(k, _ int) { keys = append(keys, k) })
	if len(keys) != 3 || keys[0] != 0 || keys[1] != 2 || keys[2] != 4 {
		t.Errorf("Range after DeleteFunc = %v", keys)
	}
}
