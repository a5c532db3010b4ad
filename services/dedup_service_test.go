package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/services/dedup"
	"github.com/haneulsoft/hakwon-api/utils/cache"
)

var dedupCtx = context.Background()

// memScanCache is an in-memory stand-in for the Redis cache, storing real
// JSON so the scan state goes through the same serialization round-trip.
type memScanCache struct {
	data    map[string][]byte
	failSet bool
}

func newMemScanCache() *memScanCache {
	return &memScanCache{data: make(map[string][]byte)}
}

func (c *memScanCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if c.failSet {
		return errors.New("injected cache write failure")
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memScanCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	b, ok := c.data[key]
	if !ok {
		return cache.ErrNotFound
	}
	return json.Unmarshal(b, dest)
}

func (c *memScanCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

// seedScanState builds a scan state over the given students and parks it in
// the cache the way Scan does.
func seedScanState(t *testing.T, c *memScanCache, students []model.Student) *ScanState {
	t.Helper()
	groups := dedup.BuildGroups(students, time.Now())
	state := &ScanState{
		ScannedAt:     time.Now(),
		TotalStudents: len(students),
		Selection:     *dedup.NewSelection(groups),
	}
	if err := c.SetJSON(dedupCtx, dedupScanKey, state, dedupScanTTL); err != nil {
		t.Fatalf("seeding scan state: %v", err)
	}
	return state
}

func duplicatePair() []model.Student {
	return []model.Student{
		{ID: 1, ExternalID: "김민수_대구초등학교_초3", Name: "김민수", School: "대구초등학교", Grade: "초3",
			Status: model.StudentStatusActive},
		{ID: 2, ExternalID: "20241104000000001742", Name: "김민수", School: "대구초", Grade: "초3",
			Status: model.StudentStatusWithdrawn},
		{ID: 3, ExternalID: "최유진_수성고_고1", Name: "최유진", School: "수성고", Grade: "고1",
			Status: model.StudentStatusActive},
	}
}

func TestScanServesCachedState(t *testing.T) {
	// A cached scan must be served as-is without touching the database: the
	// service has no DB here, so any store access would panic.
	c := newMemScanCache()
	seeded := seedScanState(t, c, duplicatePair())

	svc := &DedupService{cache: c}
	state, err := svc.Scan(dedupCtx, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.TotalStudents != seeded.TotalStudents {
		t.Errorf("total students = %d, want %d", state.TotalStudents, seeded.TotalStudents)
	}
	if len(state.Selection.Groups) != 1 {
		t.Fatalf("got %d groups, want 1 (the 김민수 pair)", len(state.Selection.Groups))
	}
	if state.DuplicateRecords() != 1 {
		t.Errorf("duplicate records = %d, want 1", state.DuplicateRecords())
	}
}

func TestUpdateSelectionRoundTrip(t *testing.T) {
	c := newMemScanCache()
	seeded := seedScanState(t, c, duplicatePair())
	key := seeded.Selection.Groups[0].Key

	svc := &DedupService{cache: c}

	// Fresh scans start unselected.
	if seeded.Selection.SelectedCount() != 0 {
		t.Fatal("a fresh scan must start with no groups selected")
	}

	state, err := svc.UpdateSelection(dedupCtx, SelectionOp{Op: "toggle", GroupKey: key})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if state.Selection.SelectedCount() != 1 {
		t.Errorf("selected = %d after toggle, want 1", state.Selection.SelectedCount())
	}

	// The mutation must survive the cache round-trip, not just the returned
	// value.
	state, err = svc.UpdateSelection(dedupCtx, SelectionOp{Op: "set_primary", GroupKey: key, StudentID: 2})
	if err != nil {
		t.Fatalf("set_primary: %v", err)
	}
	if state.Selection.SelectedCount() != 1 {
		t.Error("earlier toggle lost across the cache round-trip")
	}
	if state.Selection.Primaries[key] != 2 {
		t.Errorf("primary = %d, want the override 2", state.Selection.Primaries[key])
	}

	state, err = svc.UpdateSelection(dedupCtx, SelectionOp{Op: "reset_primaries"})
	if err != nil {
		t.Fatalf("reset_primaries: %v", err)
	}
	if got, want := state.Selection.Primaries[key], seeded.Selection.Groups[0].DefaultPrimaryID; got != want {
		t.Errorf("primary after reset = %d, want default %d", got, want)
	}

	if _, err := svc.UpdateSelection(dedupCtx, SelectionOp{Op: "explode"}); err == nil {
		t.Error("unknown op must be rejected")
	}
	if _, err := svc.UpdateSelection(dedupCtx, SelectionOp{Op: "toggle", GroupKey: "no_such_group"}); err == nil {
		t.Error("unknown group key must be rejected")
	}
}

func TestUpdateSelectionPersistFailure(t *testing.T) {
	c := newMemScanCache()
	seeded := seedScanState(t, c, duplicatePair())
	c.failSet = true

	svc := &DedupService{cache: c}
	_, err := svc.UpdateSelection(dedupCtx, SelectionOp{Op: "toggle", GroupKey: seeded.Selection.Groups[0].Key})
	if err == nil {
		t.Fatal("expected an error when the selection cannot be persisted")
	}
	if !strings.Contains(err.Error(), "persist") {
		t.Errorf("err = %v, want a persist failure", err)
	}
}

func TestUpdateSelectionWithoutScan(t *testing.T) {
	svc := &DedupService{cache: newMemScanCache()}
	_, err := svc.UpdateSelection(dedupCtx, SelectionOp{Op: "select_all"})
	if !errors.Is(err, ErrScanNotFound) {
		t.Errorf("err = %v, want ErrScanNotFound when nothing is cached", err)
	}
}

func TestSelectedPlans(t *testing.T) {
	c := newMemScanCache()
	seeded := seedScanState(t, c, duplicatePair())
	key := seeded.Selection.Groups[0].Key

	svc := &DedupService{cache: c}

	// Nothing selected yet: a merge must not be launchable.
	if _, _, err := svc.SelectedPlans(dedupCtx); err == nil {
		t.Fatal("expected an error while no group is selected")
	}

	if _, err := svc.UpdateSelection(dedupCtx, SelectionOp{Op: "toggle", GroupKey: key}); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	plans, state, err := svc.SelectedPlans(dedupCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("got %d plans, want 1", len(plans))
	}
	plan := plans[0]
	if plan.GroupKey != key {
		t.Errorf("plan group key = %q, want %q", plan.GroupKey, key)
	}
	// The active record outscores the withdrawn one, so it is the default
	// primary and the withdrawn record is the secondary.
	if plan.PrimaryID != 1 || len(plan.SecondaryIDs) != 1 || plan.SecondaryIDs[0] != 2 {
		t.Errorf("plan = %+v, want primary 1 and secondary [2]", plan)
	}
	if !strings.Contains(plan.Label, "김민수") {
		t.Errorf("label = %q, want it to carry the student name", plan.Label)
	}
	if state.Selection.SelectedCount() != 1 {
		t.Errorf("state selected = %d, want 1", state.Selection.SelectedCount())
	}
}

func TestSelectedPlansWithoutScan(t *testing.T) {
	svc := &DedupService{cache: newMemScanCache()}
	if _, _, err := svc.SelectedPlans(dedupCtx); !errors.Is(err, ErrScanNotFound) {
		t.Errorf("err = %v, want ErrScanNotFound", err)
	}
}

func TestDedupServiceDegradedWithoutCache(t *testing.T) {
	// NewDedupService receives a typed-nil *RedisCache when Redis is down at
	// startup; every cache-dependent path must degrade, not panic.
	svc := NewDedupService(nil, nil)

	if _, err := svc.UpdateSelection(dedupCtx, SelectionOp{Op: "select_all"}); !errors.Is(err, ErrScanNotFound) {
		t.Errorf("UpdateSelection err = %v, want ErrScanNotFound", err)
	}
	if _, _, err := svc.SelectedPlans(dedupCtx); !errors.Is(err, ErrScanNotFound) {
		t.Errorf("SelectedPlans err = %v, want ErrScanNotFound", err)
	}
	svc.Invalidate(dedupCtx) // must be a no-op
}

func TestInvalidateDropsCachedScan(t *testing.T) {
	c := newMemScanCache()
	seedScanState(t, c, duplicatePair())

	svc := &DedupService{cache: c}
	svc.Invalidate(dedupCtx)

	if _, err := svc.UpdateSelection(dedupCtx, SelectionOp{Op: "select_all"}); !errors.Is(err, ErrScanNotFound) {
		t.Errorf("err = %v, want ErrScanNotFound after invalidation", err)
	}
}

func TestGroupLabel(t *testing.T) {
	tests := []struct {
		name  string
		group dedup.Group
		want  string
	}{
		{"full detail", dedup.Group{Name: "김민수", School: "대구초", Grade: "초3"}, "김민수 (대구초 초3)"},
		{"school only", dedup.Group{Name: "김민수", School: "대구초"}, "김민수 (대구초)"},
		{"grade only", dedup.Group{Name: "김민수", Grade: "초3"}, "김민수 (초3)"},
		{"name only", dedup.Group{Name: "김민수"}, "김민수"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := groupLabel(tt.group); got != tt.want {
				t.Errorf("groupLabel = %q, want %q", got, tt.want)
			}
		})
	}
}
