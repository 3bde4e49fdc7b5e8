package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/debemdeboas/postboard/internal/model"
)

// memStore is an in-memory DocumentStore whose failures can be switched on.
type memStore struct {
	mu      sync.Mutex
	data    []byte
	loadErr error
	saveErr error
	loads   int
	saves   int
}

func (s *memStore) Name() string { return "mem" }

func (s *memStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.data, nil
}

func (s *memStore) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), data...)
	return nil
}

type countingObserver struct {
	mu    sync.Mutex
	calls map[string][2]int // [ok, failed]
}

func (o *countingObserver) ObserveOperation(op string, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = make(map[string][2]int)
	}
	c := o.calls[op]
	if success {
		c[0]++
	} else {
		c[1]++
	}
	o.calls[op] = c
}

func newTestRepo(data string) (*JSONPostRepository, *memStore) {
	store := &memStore{data: []byte(data)}
	return NewJSONPostRepository(store), store
}

func TestFetchAll(t *testing.T) {
	ctx := context.Background()

	t.Run("loads the document once", func(t *testing.T) {
		repo, store := newTestRepo(`[{"id":1,"author":"a","title":"t","content":"c","like":2}]`)

		res := repo.FetchAll(ctx)
		if !res.Success {
			t.Fatalf("Expected success, got %q", res.Message)
		}
		if res.Message != MsgLoaded {
			t.Errorf("Expected message %q, got %q", MsgLoaded, res.Message)
		}
		if len(res.Payload) != 1 || res.Payload[0].Like != 2 {
			t.Errorf("Unexpected payload %+v", res.Payload)
		}

		repo.FetchAll(ctx)
		if store.loads != 1 {
			t.Errorf("Expected 1 store load, got %d", store.loads)
		}
	})

	t.Run("missing like reads as zero", func(t *testing.T) {
		repo, _ := newTestRepo(`[{"id":4,"author":"a","title":"t","content":"c"}]`)

		res := repo.FetchAll(ctx)
		if !res.Success || res.Payload[0].Like != 0 {
			t.Errorf("Expected like 0, got %+v", res)
		}
	})

	t.Run("null document is an empty collection", func(t *testing.T) {
		repo, _ := newTestRepo(`null`)

		res := repo.FetchAll(ctx)
		if !res.Success {
			t.Fatalf("Expected success, got %q", res.Message)
		}
		if res.Payload == nil || len(res.Payload) != 0 {
			t.Errorf("Expected empty non-nil payload, got %#v", res.Payload)
		}
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		repo, _ := newTestRepo(`[{"id":1,"author":"a","title":"t","content":"c"}]`)

		res := repo.FetchAll(ctx)
		res.Payload[0].Title = "changed"

		post, ok := repo.FetchByID(ctx, 1)
		if !ok || post.Title != "t" {
			t.Errorf("Expected cache to be unaffected, got %+v", post)
		}
	})

	tests := []struct {
		name     string
		data     string
		loadErr  error
		sentinel error
		prefix   string
	}{
		{"not found", "", fmt.Errorf("%w: gone", ErrStoreNotFound), ErrStoreNotFound, "Error: The file was not found."},
		{"read failure", "", fmt.Errorf("%w: denied", ErrStoreIO), ErrStoreIO, "Error: Could not read the file."},
		{"decode failure", `{"id":`, nil, ErrDecode, "Error: Could not decode the file."},
		{"wrong shape", `{"id":1}`, nil, ErrDecode, "Error: Could not decode the file."},
		{"unexpected", "", errors.New("boom"), nil, "An unexpected error occurred: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, store := newTestRepo(tt.data)
			store.loadErr = tt.loadErr

			res := repo.FetchAll(ctx)
			if res.Success {
				t.Fatal("Expected failure")
			}
			if len(res.Payload) != 0 {
				t.Errorf("Expected empty payload, got %v", res.Payload)
			}
			if !strings.HasPrefix(res.Message, tt.prefix) {
				t.Errorf("Expected message starting with %q, got %q", tt.prefix, res.Message)
			}
			if tt.sentinel != nil && !errors.Is(res.Err(), tt.sentinel) {
				t.Errorf("Expected error wrapping %v, got %v", tt.sentinel, res.Err())
			}
		})
	}
}

func TestLoadFailureIsMemoized(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepo("")
	store.loadErr = fmt.Errorf("%w: gone", ErrStoreNotFound)

	repo.FetchAll(ctx)
	store.loadErr = nil
	store.data = []byte(`[]`)

	if res := repo.FetchAll(ctx); res.Success {
		t.Error("Expected memoized failure")
	}
	if res := repo.Add(ctx, "a", "t", "c"); res.Success {
		t.Error("Expected add to fail while the load failure is memoized")
	}
	if store.loads != 1 || store.saves != 0 {
		t.Errorf("Expected 1 load and 0 saves, got %d and %d", store.loads, store.saves)
	}

	repo.Reload()
	if res := repo.FetchAll(ctx); !res.Success {
		t.Errorf("Expected success after Reload, got %q", res.Message)
	}
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("ids are sequential from one", func(t *testing.T) {
		repo, _ := newTestRepo(`[]`)

		for i := 1; i <= 3; i++ {
			res := repo.Add(ctx, "author", fmt.Sprintf("title %d", i), "content")
			if !res.Success {
				t.Fatalf("Add %d failed: %q", i, res.Message)
			}
			if res.Message != MsgWritten {
				t.Errorf("Expected message %q, got %q", MsgWritten, res.Message)
			}
			if res.Payload.ID != model.PostID(i) {
				t.Errorf("Expected id %d, got %d", i, res.Payload.ID)
			}
			if res.Payload.Like != 0 {
				t.Errorf("Expected like 0, got %d", res.Payload.Like)
			}
		}
	})

	t.Run("next id is one past the highest", func(t *testing.T) {
		repo, _ := newTestRepo(`[{"id":7,"title":"a"},{"id":2,"title":"b"}]`)

		res := repo.Add(ctx, "x", "y", "z")
		if res.Payload.ID != 8 {
			t.Errorf("Expected id 8, got %d", res.Payload.ID)
		}
	})

	t.Run("writes the whole collection", func(t *testing.T) {
		repo, store := newTestRepo(`[]`)
		repo.Add(ctx, "Ana", "Hello", "World")

		want := `[{"id":1,"author":"Ana","title":"Hello","content":"World","like":0}]`
		if string(store.data) != want {
			t.Errorf("Expected document %s, got %s", want, store.data)
		}
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("in place, keeping id and position", func(t *testing.T) {
		repo, _ := newTestRepo(`[{"id":1,"title":"a"},{"id":2,"title":"b"},{"id":3,"title":"c"}]`)

		res := repo.Update(ctx, 2, "new author", "new title", "new content", 9)
		if !res.Success {
			t.Fatalf("Update failed: %q", res.Message)
		}

		all := repo.FetchAll(ctx).Payload
		if len(all) != 3 {
			t.Fatalf("Expected 3 posts, got %d", len(all))
		}
		want := model.Post{ID: 2, Author: "new author", Title: "new title", Content: "new content", Like: 9}
		if all[1] != want {
			t.Errorf("Expected %+v at index 1, got %+v", want, all[1])
		}
	})

	t.Run("missing id", func(t *testing.T) {
		repo, store := newTestRepo(`[{"id":1}]`)

		res := repo.Update(ctx, 5, "a", "t", "c", 0)
		if res.Success {
			t.Fatal("Expected failure")
		}
		if !errors.Is(res.Err(), ErrPostNotFound) {
			t.Errorf("Expected ErrPostNotFound, got %v", res.Err())
		}
		if res.Message != "Error: Post 5 not found." {
			t.Errorf("Unexpected message %q", res.Message)
		}
		if store.saves != 0 {
			t.Errorf("Expected no write, got %d", store.saves)
		}
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the post", func(t *testing.T) {
		repo, _ := newTestRepo(`[{"id":1},{"id":2},{"id":3}]`)

		res := repo.Delete(ctx, 2)
		if !res.Success {
			t.Fatalf("Delete failed: %q", res.Message)
		}
		if res.Payload.ID != 2 {
			t.Errorf("Expected removed post 2 as payload, got %d", res.Payload.ID)
		}
		if _, ok := repo.FetchByID(ctx, 2); ok {
			t.Error("Expected post 2 to be gone")
		}
		if n := len(repo.FetchAll(ctx).Payload); n != 2 {
			t.Errorf("Expected 2 posts, got %d", n)
		}
	})

	t.Run("missing id is reported", func(t *testing.T) {
		repo, store := newTestRepo(`[{"id":1}]`)

		res := repo.Delete(ctx, 42)
		if res.Success || !errors.Is(res.Err(), ErrPostNotFound) {
			t.Errorf("Expected ErrPostNotFound failure, got %+v", res)
		}
		if store.saves != 0 {
			t.Errorf("Expected no write, got %d", store.saves)
		}
	})

	t.Run("next id follows the highest remaining", func(t *testing.T) {
		repo, _ := newTestRepo(`[{"id":1},{"id":2}]`)
		repo.Delete(ctx, 1)

		if res := repo.Add(ctx, "a", "t", "c"); res.Payload.ID != 3 {
			t.Errorf("Expected id 3, got %d", res.Payload.ID)
		}
	})
}

func TestLike(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(`[{"id":1,"author":"a","title":"t","content":"c","like":4},{"id":2}]`)

	res := repo.Like(ctx, 1)
	if !res.Success {
		t.Fatalf("Like failed: %q", res.Message)
	}

	want := model.Post{ID: 1, Author: "a", Title: "t", Content: "c", Like: 5}
	if res.Payload != want {
		t.Errorf("Expected %+v, got %+v", want, res.Payload)
	}
	if all := repo.FetchAll(ctx).Payload; all[0] != want {
		t.Errorf("Expected like in place at index 0, got %+v", all[0])
	}

	if res := repo.Like(ctx, 99); res.Success || !errors.Is(res.Err(), ErrPostNotFound) {
		t.Errorf("Expected ErrPostNotFound, got %+v", res)
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepo(`[{"id":1,"title":"t","like":1}]`)
	store.saveErr = fmt.Errorf("%w: disk full", ErrStoreIO)

	tests := []struct {
		name string
		op   func() Result[model.Post]
	}{
		{"add", func() Result[model.Post] { return repo.Add(ctx, "a", "b", "c") }},
		{"update", func() Result[model.Post] { return repo.Update(ctx, 1, "a", "b", "c", 10) }},
		{"delete", func() Result[model.Post] { return repo.Delete(ctx, 1) }},
		{"like", func() Result[model.Post] { return repo.Like(ctx, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.op()
			if res.Success {
				t.Fatal("Expected failure")
			}
			if !strings.HasPrefix(res.Message, "Error: Could not write to the file.") {
				t.Errorf("Unexpected message %q", res.Message)
			}

			all := repo.FetchAll(ctx).Payload
			want := []model.Post{{ID: 1, Title: "t", Like: 1}}
			if len(all) != 1 || all[0] != want[0] {
				t.Errorf("Expected cache rolled back to %+v, got %+v", want, all)
			}
		})
	}
}

func TestChangeNotifierAndObserver(t *testing.T) {
	ctx := context.Background()
	store := &memStore{data: []byte(`[]`)}
	observer := &countingObserver{}
	repo := NewJSONPostRepository(store, WithObserver(observer))

	var notified []model.PostID
	repo.SetChangeNotifier(func(id model.PostID) {
		notified = append(notified, id)
		// Re-entering the repository must not deadlock.
		repo.FetchByID(ctx, id)
	})

	repo.Add(ctx, "a", "t", "c")
	repo.Like(ctx, 1)
	repo.Delete(ctx, 2)

	if len(notified) != 2 || notified[0] != 1 || notified[1] != 1 {
		t.Errorf("Expected notifications for [1 1], got %v", notified)
	}

	if got := observer.calls[OpLoad]; got != [2]int{1, 0} {
		t.Errorf("Expected one successful load, got %v", got)
	}
	if got := observer.calls[OpDelete]; got != [2]int{0, 1} {
		t.Errorf("Expected one failed delete, got %v", got)
	}
}

func TestConcurrentLikes(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(`[{"id":1}]`)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.Like(ctx, 1)
		}()
	}
	wg.Wait()

	post, _ := repo.FetchByID(ctx, 1)
	if post.Like != 50 {
		t.Errorf("Expected 50 likes, got %d", post.Like)
	}
}
