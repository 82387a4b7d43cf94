package qcache

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/qcache/tag"
)

func TestPrimitives_SetGet(t *testing.T) {
	clk := &fakeClock{}
	c, _ := newTestCache(t, clk)
	ctx := context.Background()

	want := map[string]any{"id": "1"}
	tags := []tag.Path{tag.New("user", "1")}
	if err := c.Set(ctx, "user:1", want, tags, WithTTL(time.Minute)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := c.Get(ctx, "user:1")
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v), want hit", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
}

func TestPrimitives_GetRespectsFreshness(t *testing.T) {
	clk := &fakeClock{}
	c, _ := newTestCache(t, clk)
	ctx := context.Background()
	tags := []tag.Path{tag.New("k")}

	if err := c.Set(ctx, "k", "v", tags, WithTTL(100*time.Millisecond), WithGrace(400*time.Millisecond)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Fresh.
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("fresh entry not returned")
	}

	// In grace: still returned.
	clk.set(200)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("in-grace entry not returned")
	}

	// Past grace: absent.
	clk.set(600)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expired entry returned")
	}
}

func TestPrimitives_GetInvalidatedIsAbsentButNotDeleted(t *testing.T) {
	clk := &fakeClock{}
	c, m := newTestCache(t, clk)
	ctx := context.Background()
	tags := []tag.Path{tag.New("posts", "1")}

	if err := c.Set(ctx, "p", "v", tags, WithTTL(time.Hour)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clk.set(100)
	if err := c.Invalidate(ctx, []tag.Path{tag.New("posts")}); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, ok, _ := c.Get(ctx, "p"); ok {
		t.Error("tag-invalidated entry returned by Get")
	}

	// Deletion stays the backend's business: the record is still stored.
	if _, found, err := m.Get(ctx, "qc:p"); err != nil || !found {
		t.Errorf("backend entry = (%v, %v), want still present", found, err)
	}
}

func TestPrimitives_GetMiss(t *testing.T) {
	clk := &fakeClock{}
	c, _ := newTestCache(t, clk)

	v, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || v != nil {
		t.Errorf("Get = (%v, %v), want (nil, false)", v, ok)
	}
}

func TestPrimitives_Del(t *testing.T) {
	clk := &fakeClock{}
	c, _ := newTestCache(t, clk)
	ctx := context.Background()
	tags := []tag.Path{tag.New("k")}

	if err := c.Set(ctx, "k", "v", tags); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("entry survived Del")
	}
	// Idempotent.
	if err := c.Del(ctx, "k"); err != nil {
		t.Errorf("Del on missing key: %v", err)
	}
}

func TestPrimitives_Validation(t *testing.T) {
	clk := &fakeClock{}
	c, _ := newTestCache(t, clk)
	ctx := context.Background()

	if err := c.Set(ctx, "", "v", []tag.Path{tag.New("k")}); err != ErrInvalidKey {
		t.Errorf("Set empty key error = %v, want ErrInvalidKey", err)
	}
	if err := c.Set(ctx, "k", "v", nil); err != ErrNoTags {
		t.Errorf("Set without tags error = %v, want ErrNoTags", err)
	}
	if _, _, err := c.Get(ctx, "bad\nkey"); err != ErrInvalidKey {
		t.Errorf("Get newline key error = %v, want ErrInvalidKey", err)
	}
	if err := c.Del(ctx, " "); err != ErrInvalidKey {
		t.Errorf("Del whitespace key error = %v, want ErrInvalidKey", err)
	}
}

// Write-then-read within one engine instance is read-your-writes against
// a backend that provides it.
func TestPrimitives_ReadYourWrites(t *testing.T) {
	clk := &fakeClock{}
	c, _ := newTestCache(t, clk)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := c.Set(ctx, "k", i, []tag.Path{tag.New("k")}, WithTTL(time.Minute)); err != nil {
			t.Fatalf("Set: %v", err)
		}
		v, ok, err := c.Get(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("Get = (%v, %v), want hit", ok, err)
		}
		if v != i {
			t.Fatalf("Get = %v immediately after Set(%d)", v, i)
		}
	}
}

// Primitives and Query share invalidation semantics: a Set entry is
// reloaded by Query after its tag is invalidated.
func TestPrimitives_SharedSemanticsWithQuery(t *testing.T) {
	clk := &fakeClock{}
	c, _ := newTestCache(t, clk)
	ctx := context.Background()
	tags := []tag.Path{tag.New("user", "1")}

	if err := c.Set(ctx, "u", "stored", tags, WithTTL(time.Hour)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Query sees the primitive-written entry.
	load, calls := countingLoader()
	v, err := c.Query(ctx, "u", tags, load, WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if v != "stored" || calls.Load() != 0 {
		t.Fatalf("Query = %v (loader calls %d), want stored value without load", v, calls.Load())
	}

	clk.set(100)
	if err := c.Invalidate(ctx, []tag.Path{tag.New("user")}); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	clk.set(200)
	if _, err := c.Query(ctx, "u", tags, load, WithTTL(time.Hour)); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("loader invoked %d times after invalidation, want 1", calls.Load())
	}
}
