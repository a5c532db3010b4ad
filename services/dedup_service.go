package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/services/dedup"
	"github.com/haneulsoft/hakwon-api/utils/cache"
)

const (
	dedupScanKey = "dedup:scan:v1"
	dedupScanTTL = 24 * time.Hour
)

// ErrScanNotFound means no scan result is cached; the caller should run a scan first.
var ErrScanNotFound = errors.New("no duplicate scan available")

// scanCache is the slice of the Redis cache the scan state lives behind.
type scanCache interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// DedupService runs duplicate scans over the student table and keeps the
// result, together with the admin's merge selection, in Redis. The cached
// state is what the merge endpoint reads, so a merge always operates on the
// exact groups the admin reviewed.
type DedupService struct {
	db    *gorm.DB
	cache scanCache
}

func NewDedupService(db *gorm.DB, redisCache *cache.RedisCache) *DedupService {
	s := &DedupService{db: db}
	// Guard the typed-nil pointer: a nil *RedisCache must leave the cache
	// interface nil so the degraded-mode checks fire.
	if redisCache != nil {
		s.cache = redisCache
	}
	return s
}

// ScanState is the cached scan result plus the admin's current selection.
type ScanState struct {
	ScannedAt     time.Time       `json:"scanned_at"`
	TotalStudents int             `json:"total_students"`
	Selection     dedup.Selection `json:"selection"`
}

// DuplicateRecords counts the records that would be removed if every group
// were merged (every member except one primary per group).
func (s *ScanState) DuplicateRecords() int {
	n := 0
	for _, g := range s.Selection.Groups {
		n += len(g.Members) - 1
	}
	return n
}

// SelectionOp is one mutation of the cached selection.
type SelectionOp struct {
	Op        string `json:"op" validate:"required,oneof=set_primary toggle select_all deselect_all reset_primaries"`
	GroupKey  string `json:"group_key"`
	StudentID uint   `json:"student_id"`
}

// Scan returns the cached scan state, or runs a fresh scan when force is set
// or nothing is cached. A fresh scan resets the selection.
func (s *DedupService) Scan(ctx context.Context, force bool) (*ScanState, error) {
	if !force {
		if state, err := s.getState(ctx); err == nil {
			return state, nil
		}
	}

	start := time.Now()

	var students []model.Student
	if err := s.db.WithContext(ctx).Preload("Enrollments").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}

	groups := dedup.BuildGroups(students, time.Now())

	state := &ScanState{
		ScannedAt:     time.Now(),
		TotalStudents: len(students),
		Selection:     *dedup.NewSelection(groups),
	}

	log.Printf("[DEDUP-SCAN] Scanned %d students in %v: %d duplicate groups, %d removable records",
		len(students), time.Since(start).Round(time.Millisecond), len(groups), state.DuplicateRecords())

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, dedupScanKey, state, dedupScanTTL); err != nil {
			// A failed cache write degrades selection persistence but the scan
			// result itself is still usable.
			log.Printf("[DEDUP-SCAN] Failed to cache scan state: %v", err)
		}
	}
	return state, nil
}

// UpdateSelection applies one selection mutation to the cached state and
// writes it back.
func (s *DedupService) UpdateSelection(ctx context.Context, op SelectionOp) (*ScanState, error) {
	state, err := s.getState(ctx)
	if err != nil {
		return nil, err
	}

	switch op.Op {
	case "set_primary":
		err = state.Selection.SetPrimary(op.GroupKey, op.StudentID)
	case "toggle":
		err = state.Selection.Toggle(op.GroupKey)
	case "select_all":
		state.Selection.SelectAll()
	case "deselect_all":
		state.Selection.DeselectAll()
	case "reset_primaries":
		state.Selection.ResetPrimaries()
	default:
		err = fmt.Errorf("unknown selection op %q", op.Op)
	}
	if err != nil {
		return nil, err
	}

	if s.cache == nil {
		return nil, errors.New("scan cache unavailable")
	}
	if err := s.cache.SetJSON(ctx, dedupScanKey, state, dedupScanTTL); err != nil {
		return nil, fmt.Errorf("failed to persist selection: %w", err)
	}
	return state, nil
}

// SelectedPlans converts the current selection into merge plans. It errors
// when nothing is selected so callers never launch an empty merge.
func (s *DedupService) SelectedPlans(ctx context.Context) ([]GroupPlan, *ScanState, error) {
	state, err := s.getState(ctx)
	if err != nil {
		return nil, nil, err
	}

	selected := state.Selection.SelectedGroups()
	if len(selected) == 0 {
		return nil, nil, errors.New("no groups selected for merge")
	}

	plans := make([]GroupPlan, 0, len(selected))
	for _, g := range selected {
		plans = append(plans, GroupPlan{
			Label:        groupLabel(g.Group),
			GroupKey:     g.Group.Key,
			PrimaryID:    g.PrimaryID,
			SecondaryIDs: g.SecondaryIDs,
		})
	}
	return plans, state, nil
}

// groupLabel renders a human label like "김민수 (대구초 초3)" for job rows and
// error strings.
func groupLabel(g dedup.Group) string {
	detail := strings.TrimSpace(strings.TrimSpace(g.School) + " " + strings.TrimSpace(g.Grade))
	if detail == "" {
		return g.Name
	}
	return fmt.Sprintf("%s (%s)", g.Name, detail)
}

// Invalidate drops the cached scan. Called after a merge job finishes so the
// next scan reflects the merged table.
func (s *DedupService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dedupScanKey); err != nil {
		log.Printf("[DEDUP-SCAN] Failed to invalidate scan cache: %v", err)
	}
}

func (s *DedupService) getState(ctx context.Context) (*ScanState, error) {
	if s.cache == nil {
		return nil, ErrScanNotFound
	}
	var state ScanState
	err := s.cache.GetJSON(ctx, dedupScanKey, &state)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scan cache: %w", err)
	}
	return &state, nil
}
