package location

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"dot/internal/types"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()

	addr := os.Getenv("DOT_REDIS_ADDR")
	if addr == "" {
		t.Skip("DOT_REDIS_ADDR not set; skipping Redis-backed tests")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() {
		rdb.Del(context.Background(), geoKey, seenKey)
		rdb.Close()
	})

	return NewService(NewStore(rdb))
}

func TestUpdateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	id := types.ID(fmt.Sprintf("d_loc_%d", time.Now().UnixNano()))
	p := types.Point{Lat: 33.5138, Lng: 36.2765}

	if err := svc.Update(ctx, id, p); err != nil {
		t.Fatalf("update: %v", err)
	}

	loc, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loc == nil {
		t.Fatal("driver not on live map after update")
	}
	// GEO storage quantizes coordinates; a few metres of drift is expected
	if diff := loc.Position.Lat - p.Lat; diff > 0.001 || diff < -0.001 {
		t.Errorf("lat = %f, want ~%f", loc.Position.Lat, p.Lat)
	}
	if loc.SeenAt.IsZero() {
		t.Error("seen timestamp not recorded")
	}

	if err := svc.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	loc, err = svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after remove: %v", err)
	}
	if loc != nil {
		t.Fatal("driver still on live map after remove")
	}
}

func TestUpdateRejectsBadCoordinates(t *testing.T) {
	svc := NewService(nil)
	if err := svc.Update(context.Background(), "d1", types.Point{Lat: 91, Lng: 0}); err != ErrInvalidPosition {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
	if err := svc.Update(context.Background(), "d1", types.Point{Lat: 0, Lng: -181}); err != ErrInvalidPosition {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
}

func TestStaleDriversHidden(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	id := types.ID(fmt.Sprintf("d_stale_%d", time.Now().UnixNano()))
	if err := svc.Update(ctx, id, types.Point{Lat: 33.5, Lng: 36.3}); err != nil {
		t.Fatalf("update: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(staleAfter + time.Second) }

	loc, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loc != nil {
		t.Fatal("stale driver still visible")
	}

	active, err := svc.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	for _, l := range active {
		if l.DriverID == id {
			t.Fatal("stale driver listed as active")
		}
	}
}

func TestNearby(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	near := types.ID(fmt.Sprintf("d_near_%d", time.Now().UnixNano()))
	far := types.ID(fmt.Sprintf("d_far_%d", time.Now().UnixNano()))
	center := types.Point{Lat: 33.5138, Lng: 36.2765}

	if err := svc.Update(ctx, near, types.Point{Lat: 33.5150, Lng: 36.2770}); err != nil {
		t.Fatalf("update near: %v", err)
	}
	if err := svc.Update(ctx, far, types.Point{Lat: 34.8021, Lng: 38.9968}); err != nil {
		t.Fatalf("update far: %v", err)
	}

	got, err := svc.Nearby(ctx, center, 5, 0)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}

	foundNear, foundFar := false, false
	for _, l := range got {
		if l.DriverID == near {
			foundNear = true
		}
		if l.DriverID == far {
			foundFar = true
		}
	}
	if !foundNear {
		t.Error("nearby driver missing from 5km search")
	}
	if foundFar {
		t.Error("driver hundreds of km away returned by 5km search")
	}
}
