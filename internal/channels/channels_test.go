package channels

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/slack-go/slack"
)

type fakeLister struct {
	pages [][]Channel
	err   error
	calls int
}

func (f *fakeLister) GetConversationsContext(_ context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}

	idx := 0
	if params.Cursor != "" {
		idx = int(params.Cursor[0] - '0')
	}

	var out []slack.Channel
	for _, c := range f.pages[idx] {
		var ch slack.Channel
		ch.ID = c.ID
		ch.Name = c.Name
		out = append(out, ch)
	}

	next := ""
	if idx+1 < len(f.pages) {
		next = string(rune('0' + idx + 1))
	}
	return out, next, nil
}

func TestResolveFindsChannel(t *testing.T) {
	lister := &fakeLister{pages: [][]Channel{
		{{Name: "general", ID: "C1"}},
		{{Name: "alerts", ID: "C2"}},
	}}
	r := NewResolver("", nil)

	ch, err := r.Resolve(context.Background(), "T1", lister)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ch.ID != "C2" {
		t.Errorf("ID = %q, want C2", ch.ID)
	}
	if lister.calls != 2 {
		t.Errorf("calls = %d, want 2 pages", lister.calls)
	}

	// second lookup is served from the cache
	if _, err := r.Resolve(context.Background(), "T1", lister); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if lister.calls != 2 {
		t.Errorf("calls = %d after cached lookup, want 2", lister.calls)
	}
}

func TestResolveMissingChannel(t *testing.T) {
	lister := &fakeLister{pages: [][]Channel{{{Name: "general", ID: "C1"}}}}
	r := NewResolver("alerts", NewMemoryCache())

	_, err := r.Resolve(context.Background(), "T1", lister)
	if !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("Resolve() error = %v, want ErrChannelNotFound", err)
	}
}

func TestResolveRefreshesOnStaleCache(t *testing.T) {
	cache := NewMemoryCache()
	_ = cache.Store(context.Background(), "T1", []Channel{{Name: "general", ID: "C1"}})
	lister := &fakeLister{pages: [][]Channel{{{Name: "alerts", ID: "C9"}}}}

	ch, err := NewResolver("alerts", cache).Resolve(context.Background(), "T1", lister)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ch.ID != "C9" {
		t.Errorf("ID = %q, want C9", ch.ID)
	}
}

func TestResolvePlatformError(t *testing.T) {
	lister := &fakeLister{err: errors.New("ratelimited")}

	if _, err := NewResolver("alerts", nil).Resolve(context.Background(), "T1", lister); err == nil {
		t.Error("expected error")
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://127.0.0.1:6379"
	}
	ctx := context.Background()
	cache, err := NewRedisCache(ctx, url)
	if err != nil {
		t.Skipf("Skipping redis test: Redis not available: %v", err)
	}
	defer cache.Close()

	want := []Channel{{Name: "alerts", ID: "C1"}}
	if err := cache.Store(ctx, "T-test", want); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	got, ok, err := cache.Load(ctx, "T-test")
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("Load() = %v, want %v", got, want)
	}

	if _, ok, _ := cache.Load(ctx, "T-missing"); ok {
		t.Error("Load() of missing team should miss")
	}
}
