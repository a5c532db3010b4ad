package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
)

// memoSeparator joins memo texts collected from merged records.
const memoSeparator = "\n\n---\n\n"

// backfillFields is the fixed list of profile fields copied from secondaries
// into the primary when the primary's value is empty. Memo is handled
// separately (concatenation instead of first-wins).
var backfillFields = []struct {
	column string
	get    func(*model.Student) string
}{
	{"english_name", func(s *model.Student) string { return s.EnglishName }},
	{"email", func(s *model.Student) string { return s.Email }},
	{"student_phone", func(s *model.Student) string { return s.StudentPhone }},
	{"parent_name", func(s *model.Student) string { return s.ParentName }},
	{"parent_phone", func(s *model.Student) string { return s.ParentPhone }},
	{"parent_email", func(s *model.Student) string { return s.ParentEmail }},
	{"birth_date", func(s *model.Student) string { return s.BirthDate }},
	{"address", func(s *model.Student) string { return s.Address }},
	{"attendance_number", func(s *model.Student) string { return s.AttendanceNumber }},
	{"bus_route", func(s *model.Student) string { return s.BusRoute }},
	{"emergency_contact", func(s *model.Student) string { return s.EmergencyContact }},
	{"counseling_note", func(s *model.Student) string { return s.CounselingNote }},
	{"billing_name", func(s *model.Student) string { return s.BillingName }},
	{"billing_contact", func(s *model.Student) string { return s.BillingContact }},
	{"billing_note", func(s *model.Student) string { return s.BillingNote }},
	{"settlement_day", func(s *model.Student) string { return s.SettlementDay }},
	{"tuition_note", func(s *model.Student) string { return s.TuitionNote }},
	{"school", func(s *model.Student) string { return s.School }},
	{"grade", func(s *model.Student) string { return s.Grade }},
}

// GroupPlan describes one duplicate group approved for merging: the surviving
// primary and the secondaries to fold into it, in processing order.
type GroupPlan struct {
	Label        string `json:"label"` // human label ("김민수 (대구초 초3)"), used in error strings
	GroupKey     string `json:"group_key"`
	PrimaryID    uint   `json:"primary_id"`
	SecondaryIDs []uint `json:"secondary_ids"`
}

// GroupResult is the outcome of merging one group. On failure the counts
// reflect exactly the side effects that were applied before the failure;
// nothing is rolled back.
type GroupResult struct {
	Transferred int   // enrollments written to the primary
	Deleted     int   // secondary student records hard-deleted
	Skipped     int   // active enrollments dropped due to signature collision
	Err         error // nil on full success
}

// MergeService merges duplicate student records: transfers enrollments from
// secondaries to the primary with active-collision skip semantics, backfills
// empty primary fields, and hard-deletes the secondaries.
type MergeService struct {
	store StudentStore
	now   func() time.Time
}

// NewMergeService creates a merge service over the given store.
func NewMergeService(store StudentStore) *MergeService {
	return &MergeService{store: store, now: time.Now}
}

// MergeGroup merges one duplicate group. Secondaries are processed strictly
/// sequentially: the active-signature set is seeded from the primary's current
// enrollments and evolves in memory as transfers land, so a later secondary
// sees signatures contributed by an earlier one. Processing stops at the
// first failure; partial progress is kept and reported, not rolled back.
func (s *MergeService) MergeGroup(ctx context.Context, plan GroupPlan) GroupResult {
	var result GroupResult

	primary, err := s.store.GetStudent(ctx, plan.PrimaryID)
	if err != nil {
		result.Err = fmt.Errorf("primary record: %w", err)
		return result
	}

	primaryEnrollments, err := s.store.ListEnrollments(ctx, primary.ID)
	if err != nil {
		result.Err = err
		return result
	}

	// Signatures of the primary's currently active enrollments. An active
	// enrollment arriving from a secondary with a signature already in this
	// set is dropped, never transferred. Ended enrollments always transfer.
	activeSignatures := make(map[string]bool)
	for i := range primaryEnrollments {
		if primaryEnrollments[i].IsActive() {
			activeSignatures[primaryEnrollments[i].Signature()] = true
		}
	}

	processed := make([]*model.Student, 0, len(plan.SecondaryIDs))
	for _, secondaryID := range plan.SecondaryIDs {
		secondary, err := s.store.GetStudent(ctx, secondaryID)
		if err != nil {
			result.Err = fmt.Errorf("secondary record: %w", err)
			return result
		}

		enrollments, err := s.store.ListEnrollments(ctx, secondaryID)
		if err != nil {
			result.Err = err
			return result
		}

		migratedAt := s.now()
		ops := make([]BatchOp, 0, 2*len(enrollments))
		skipped := 0
		for i := range enrollments {
			e := enrollments[i]
			if e.IsActive() && activeSignatures[e.Signature()] {
				skipped++
				log.Printf("[MERGE] Skipping duplicate active enrollment %s of student %s", e.Signature(), secondary.ExternalID)
			} else {
				transferred := model.Enrollment{
					StudentID:    primary.ID,
					Subject:      e.Subject,
					ClassName:    e.ClassName,
					Teacher:      e.Teacher,
					StartDate:    e.StartDate,
					EndDate:      e.EndDate,
					Extra:        e.Extra,
					MigratedFrom: secondary.ExternalID,
					MigratedAt:   &migratedAt,
				}
				ops = append(ops, BatchOp{Kind: BatchOpCreateEnrollment, Create: &transferred})
				if e.IsActive() {
					activeSignatures[e.Signature()] = true
				}
			}
			// Every enrollment of the secondary is removed, transferred or not.
			ops = append(ops, BatchOp{Kind: BatchOpDeleteEnrollment, DeleteID: e.ID})
		}

		// Transferred must reflect exactly what landed: applyChunked reports
		// the creates of every committed chunk even when a later chunk fails,
		// and skips only count once the whole batch is through.
		committed, err := s.applyChunked(ctx, ops)
		result.Transferred += committed
		if err != nil {
			result.Err = fmt.Errorf("transferring enrollments of %s: %w", secondary.ExternalID, err)
			return result
		}
		result.Skipped += skipped

		// Hard delete. A crash between the batch above and this delete leaves
		// a secondary with already-migrated data; accepted, not guarded.
		if err := s.store.DeleteStudent(ctx, secondaryID); err != nil {
			result.Err = err
			return result
		}
		result.Deleted++
		processed = append(processed, secondary)
	}

	patch := buildBackfillPatch(primary, processed)
	if len(patch) > 0 {
		if err := s.store.PatchStudent(ctx, primary.ID, patch); err != nil {
			result.Err = fmt.Errorf("backfilling primary %s: %w", primary.ExternalID, err)
			return result
		}
	}

	return result
}

// applyChunked splits ops into batches the store accepts and returns how many
// create ops were committed. Chunking trades per-secondary atomicity for
// progress on groups whose enrollment count exceeds the batch limit, so on
// error the committed count covers the chunks that already landed.
func (s *MergeService) applyChunked(ctx context.Context, ops []BatchOp) (int, error) {
	committed := 0
	for start := 0; start < len(ops); start += MaxBatchOps {
		end := start + MaxBatchOps
		if end > len(ops) {
			end = len(ops)
		}
		chunk := ops[start:end]
		if err := s.store.ApplyBatch(ctx, chunk); err != nil {
			return committed, err
		}
		for i := range chunk {
			if chunk[i].Kind == BatchOpCreateEnrollment {
				committed++
			}
		}
	}
	return committed, nil
}

// buildBackfillPatch fills empty primary fields with the first non-empty
// value among the processed secondaries, and concatenates memos (primary's
// first) when more than one record carried one.
func buildBackfillPatch(primary *model.Student, secondaries []*model.Student) map[string]interface{} {
	patch := make(map[string]interface{})

	for _, f := range backfillFields {
		if strings.TrimSpace(f.get(primary)) != "" {
			continue
		}
		for _, sec := range secondaries {
			if v := strings.TrimSpace(f.get(sec)); v != "" {
				patch[f.column] = v
				break
			}
		}
	}

	memos := make([]string, 0, 1+len(secondaries))
	if strings.TrimSpace(primary.Memo) != "" {
		memos = append(memos, primary.Memo)
	}
	for _, sec := range secondaries {
		if strings.TrimSpace(sec.Memo) != "" {
			memos = append(memos, sec.Memo)
		}
	}
	if len(memos) > 0 {
		combined := strings.Join(memos, memoSeparator)
		if combined != primary.Memo {
			patch["memo"] = combined
		}
	}

	return patch
}
