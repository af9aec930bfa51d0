package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/athanasso/photos-widget/internal/cache/memory"
	"github.com/athanasso/photos-widget/internal/ratelimit"
)

func TestAllowWithinQuota(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	l := ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: 3,
		Window:            time.Minute,
		KeyPrefix:         "rl:",
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "advance")
		if err != nil {
			t.Fatalf("Allow %d: %v", i+1, err)
		}
		if !res.Allowed {
			t.Errorf("request %d denied within quota", i+1)
		}
		if want := int64(3 - (i + 1)); res.Remaining != want {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res, err := l.Allow(ctx, "advance")
	if err != nil {
		t.Fatalf("Allow over quota: %v", err)
	}
	if res.Allowed {
		t.Error("request over quota was allowed")
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining over quota = %d, want 0", res.Remaining)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	l := ratelimit.New(c, &ratelimit.Config{RequestsPerWindow: 1, Window: time.Minute})
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "advance"); !res.Allowed {
		t.Fatal("first advance denied")
	}
	if res, _ := l.Allow(ctx, "advance"); res.Allowed {
		t.Fatal("second advance allowed over quota")
	}
	if res, _ := l.Allow(ctx, "events"); !res.Allowed {
		t.Error("events key throttled by advance key")
	}
}

func TestWindowReset(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	l := ratelimit.New(c, &ratelimit.Config{RequestsPerWindow: 1, Window: time.Millisecond})
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "advance"); !res.Allowed {
		t.Fatal("first request denied")
	}
	if res, _ := l.Allow(ctx, "advance"); res.Allowed {
		t.Fatal("second request allowed within window")
	}

	time.Sleep(5 * time.Millisecond)
	if res, _ := l.Allow(ctx, "advance"); !res.Allowed {
		t.Error("request denied after window reset")
	}
}
