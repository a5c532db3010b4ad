package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
)

// memStudentStore is an in-memory StudentStore with failure injection for
// exercising partial-progress semantics.
type memStudentStore struct {
	students    map[uint]*model.Student
	enrollments map[uint]*model.Enrollment
	nextID      uint

	batchCalls   int
	maxBatchLen  int
	failBatchAt  int          // fail the Nth ApplyBatch call (1-based), 0 = never
	failDeleteOf map[uint]bool // student IDs whose delete fails
}

func newMemStore() *memStudentStore {
	return &memStudentStore{
		students:     make(map[uint]*model.Student),
		enrollments:  make(map[uint]*model.Enrollment),
		nextID:       1000,
		failDeleteOf: make(map[uint]bool),
	}
}

func (m *memStudentStore) addStudent(s model.Student) *model.Student {
	cp := s
	m.students[cp.ID] = &cp
	return &cp
}

func (m *memStudentStore) addEnrollment(e model.Enrollment) *model.Enrollment {
	m.nextID++
	cp := e
	cp.ID = m.nextID
	m.enrollments[cp.ID] = &cp
	return &cp
}

func (m *memStudentStore) GetStudent(_ context.Context, id uint) (*model.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, fmt.Errorf("student %d not found", id)
	}
	cp := *s
	return &cp, nil
}

func (m *memStudentStore) ListEnrollments(_ context.Context, studentID uint) ([]model.Enrollment, error) {
	var out []model.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStudentStore) ApplyBatch(_ context.Context, ops []BatchOp) error {
	m.batchCalls++
	if len(ops) > m.maxBatchLen {
		m.maxBatchLen = len(ops)
	}
	if len(ops) > MaxBatchOps {
		return fmt.Errorf("batch of %d operations exceeds the %d-op limit", len(ops), MaxBatchOps)
	}
	if m.failBatchAt > 0 && m.batchCalls == m.failBatchAt {
		return errors.New("injected batch failure")
	}
	for _, op := range ops {
		switch op.Kind {
		case BatchOpCreateEnrollment:
			m.addEnrollment(*op.Create)
		case BatchOpDeleteEnrollment:
			delete(m.enrollments, op.DeleteID)
		}
	}
	return nil
}

func (m *memStudentStore) DeleteStudent(_ context.Context, id uint) error {
	if m.failDeleteOf[id] {
		return errors.New("injected delete failure")
	}
	delete(m.students, id)
	return nil
}

func (m *memStudentStore) PatchStudent(_ context.Context, id uint, fields map[string]interface{}) error {
	s, ok := m.students[id]
	if !ok {
		return fmt.Errorf("student %d not found", id)
	}
	for col, v := range fields {
		val, _ := v.(string)
		switch col {
		case "english_name":
			s.EnglishName = val
		case "student_phone":
			s.StudentPhone = val
		case "parent_name":
			s.ParentName = val
		case "parent_phone":
			s.ParentPhone = val
		case "address":
			s.Address = val
		case "school":
			s.School = val
		case "grade":
			s.Grade = val
		case "memo":
			s.Memo = val
		}
	}
	return nil
}

func (m *memStudentStore) activeCount(studentID uint, signature string) int {
	n := 0
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.IsActive() && e.Signature() == signature {
			n++
		}
	}
	return n
}

func (m *memStudentStore) endedCount(studentID uint) int {
	n := 0
	for _, e := range m.enrollments {
		if e.StudentID == studentID && !e.IsActive() {
			n++
		}
	}
	return n
}

func endedAt(t time.Time) *time.Time { return &t }

var mergeCtx = context.Background()

func TestMergeGroupBasic(t *testing.T) {
	store := newMemStore()
	primary := store.addStudent(model.Student{ID: 1, ExternalID: "김민수_대구초_초3", Name: "김민수", Status: model.StudentStatusActive})
	store.addEnrollment(model.Enrollment{StudentID: 1, Subject: "math", ClassName: "A반"})
	store.addEnrollment(model.Enrollment{StudentID: 1, Subject: "english", ClassName: "B반"})
	store.addStudent(model.Student{ID: 2, ExternalID: "b1", Name: "김민수", Status: model.StudentStatusWithdrawn, ParentPhone: "010-8765-4321"})

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2}})

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Transferred != 0 || result.Deleted != 1 {
		t.Errorf("result = %+v, want 0 transferred, 1 deleted", result)
	}
	if _, ok := store.students[2]; ok {
		t.Error("secondary must be hard-deleted")
	}
	// The primary kept its enrollments and was backfilled from the secondary.
	if got, _ := store.ListEnrollments(mergeCtx, 1); len(got) != 2 {
		t.Errorf("primary has %d enrollments, want 2", len(got))
	}
	if store.students[1].ParentPhone != "010-8765-4321" {
		t.Error("empty primary field must be backfilled from the secondary")
	}
	if primary.ExternalID != store.students[1].ExternalID {
		t.Error("primary identity must not change")
	}
}

func TestMergeGroupActiveCollisionSkip(t *testing.T) {
	store := newMemStore()
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 1, Subject: "math", ClassName: "A반"})
	store.addStudent(model.Student{ID: 2, ExternalID: "s", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "math", ClassName: "A반"}) // active collision, dropped
	store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "english", ClassName: "B반",
		EndDate: endedAt(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))}) // ended, always transferred

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2}})

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Transferred != 1 || result.Skipped != 1 || result.Deleted != 1 {
		t.Errorf("result = %+v, want 1 transferred, 1 skipped, 1 deleted", result)
	}
	if n := store.activeCount(1, "math_A반"); n != 1 {
		t.Errorf("primary has %d active math_A반 enrollments, want exactly 1", n)
	}
	if n := store.endedCount(1); n != 1 {
		t.Errorf("primary has %d ended enrollments, want 1 (history preserved)", n)
	}
	for _, e := range store.enrollments {
		if e.StudentID == 1 && e.Subject == "english" {
			if e.MigratedFrom != "s" || e.MigratedAt == nil {
				t.Error("transferred enrollment must carry migration provenance")
			}
		}
	}
}

func TestMergeGroupSignatureEvolvesAcrossSecondaries(t *testing.T) {
	// Secondary #2's duplicate check must see the signature contributed by
	// secondary #1 earlier in the same merge.
	store := newMemStore()
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수"})
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "math", ClassName: "A반"})
	store.addStudent(model.Student{ID: 3, ExternalID: "s2", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 3, Subject: "math", ClassName: "A반"})

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2, 3}})

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Transferred != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v, want 1 transferred, 1 skipped", result)
	}
	if n := store.activeCount(1, "math_A반"); n != 1 {
		t.Errorf("primary has %d active math_A반 enrollments, want exactly 1", n)
	}
}

func TestMergeGroupEndedEnrollmentsConserved(t *testing.T) {
	store := newMemStore()
	ended := endedAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 1, Subject: "math", ClassName: "A반", EndDate: ended})
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "math", ClassName: "A반", EndDate: ended})
	store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "english", ClassName: "B반", EndDate: ended})
	store.addStudent(model.Student{ID: 3, ExternalID: "s2", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 3, Subject: "math", ClassName: "A반", EndDate: ended})

	before := store.endedCount(1) + store.endedCount(2) + store.endedCount(3)

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2, 3}})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if after := store.endedCount(1); after != before {
		t.Errorf("ended enrollments: %d before, %d on primary after; history must be conserved", before, after)
	}
}

func TestMergeGroupPartialFailureAccounting(t *testing.T) {
	// Force the failure after one secondary is fully processed: the result
	// must reflect exactly the side effects that were applied.
	store := newMemStore()
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수"})
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "math", ClassName: "A반"})
	store.addStudent(model.Student{ID: 3, ExternalID: "s2", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 3, Subject: "science", ClassName: "C반"})
	store.failBatchAt = 2 // secondary #2's transfer batch fails

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2, 3}})

	if result.Err == nil {
		t.Fatal("expected an error")
	}
	if result.Transferred != 1 || result.Deleted != 1 {
		t.Errorf("result = %+v, want exactly secondary #1's worth of progress", result)
	}
	if _, ok := store.students[2]; ok {
		t.Error("secondary #1 was processed and must be deleted")
	}
	if _, ok := store.students[3]; !ok {
		t.Error("secondary #2 failed and must remain")
	}
	if got, _ := store.ListEnrollments(mergeCtx, 3); len(got) != 1 {
		t.Error("secondary #2's enrollments must be untouched after its batch failed")
	}
}

func TestMergeGroupDeleteFailureAccounting(t *testing.T) {
	store := newMemStore()
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수"})
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "math", ClassName: "A반"})
	store.failDeleteOf[2] = true

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2}})

	if result.Err == nil {
		t.Fatal("expected an error")
	}
	// The transfer batch committed before the delete failed.
	if result.Transferred != 1 || result.Deleted != 0 {
		t.Errorf("result = %+v, want 1 transferred, 0 deleted", result)
	}
}

func TestMergeGroupMissingPrimary(t *testing.T) {
	store := newMemStore()
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수"})

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 99, SecondaryIDs: []uint{2}})

	if result.Err == nil {
		t.Fatal("expected an error for a missing primary")
	}
	if result.Transferred != 0 || result.Deleted != 0 {
		t.Errorf("result = %+v, want no side effects", result)
	}
	if _, ok := store.students[2]; !ok {
		t.Error("secondary must be untouched when the primary is missing")
	}
}

func TestMergeGroupMemoConcatenation(t *testing.T) {
	store := newMemStore()
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수", Memo: "원장 상담 완료"})
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수", Memo: "수학 보강 필요"})
	store.addStudent(model.Student{ID: 3, ExternalID: "s2", Name: "김민수"})

	svc := NewMergeService(store)
	if result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2, 3}}); result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	want := "원장 상담 완료" + memoSeparator + "수학 보강 필요"
	if store.students[1].Memo != want {
		t.Errorf("memo = %q, want primary's memo first, then the secondary's", store.students[1].Memo)
	}
}

func TestMergeGroupAdoptsLoneSecondaryMemo(t *testing.T) {
	store := newMemStore()
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수"})
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수", Memo: "수학 보강 필요"})

	svc := NewMergeService(store)
	if result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2}}); result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if store.students[1].Memo != "수학 보강 필요" {
		t.Errorf("memo = %q, want the lone secondary memo adopted without separator", store.students[1].Memo)
	}
	if strings.Contains(store.students[1].Memo, memoSeparator) {
		t.Error("single memo must not gain a separator")
	}
}

func TestMergeGroupChunksLargeBatches(t *testing.T) {
	store := newMemStore()
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수"})
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수"})
	// 300 enrollments produce 600 ops (create + delete each), above the
	// 500-op batch limit.
	for i := 0; i < 300; i++ {
		store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "math", ClassName: fmt.Sprintf("%d반", i)})
	}

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2}})

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Transferred != 300 {
		t.Errorf("transferred = %d, want 300", result.Transferred)
	}
	if store.maxBatchLen > MaxBatchOps {
		t.Errorf("largest batch had %d ops, limit is %d", store.maxBatchLen, MaxBatchOps)
	}
	if store.batchCalls < 2 {
		t.Errorf("expected chunking into multiple batches, got %d call(s)", store.batchCalls)
	}
}

func TestMergeGroupChunkBoundaryFailureAccounting(t *testing.T) {
	// 300 enrollments produce 600 ops split into a 500-op and a 100-op
	// chunk. The second chunk fails after the first committed: Transferred
	// must equal the creates that actually landed, not zero.
	store := newMemStore()
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수"})
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수"})
	for i := 0; i < 300; i++ {
		store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "math", ClassName: fmt.Sprintf("%d반", i)})
	}
	store.failBatchAt = 2

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2}})

	if result.Err == nil {
		t.Fatal("expected an error")
	}
	landed, _ := store.ListEnrollments(mergeCtx, 1)
	if result.Transferred != len(landed) {
		t.Errorf("transferred = %d but %d enrollments were committed to the primary", result.Transferred, len(landed))
	}
	if result.Transferred != 250 {
		t.Errorf("transferred = %d, want 250 (the creates in the committed first chunk)", result.Transferred)
	}
	if result.Deleted != 0 {
		t.Errorf("deleted = %d, want 0 (the secondary survived the failed batch)", result.Deleted)
	}
	if _, ok := store.students[2]; !ok {
		t.Error("secondary must remain after its transfer batch failed")
	}
}

func TestMergeGroupSkipsNotCountedOnFailedBatch(t *testing.T) {
	store := newMemStore()
	store.addStudent(model.Student{ID: 1, ExternalID: "p", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 1, Subject: "math", ClassName: "A반"})
	store.addStudent(model.Student{ID: 2, ExternalID: "s1", Name: "김민수"})
	store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "math", ClassName: "A반"}) // active collision
	store.addEnrollment(model.Enrollment{StudentID: 2, Subject: "english", ClassName: "B반"})
	store.failBatchAt = 1

	svc := NewMergeService(store)
	result := svc.MergeGroup(mergeCtx, GroupPlan{Label: "김민수", PrimaryID: 1, SecondaryIDs: []uint{2}})

	if result.Err == nil {
		t.Fatal("expected an error")
	}
	// Nothing landed, so nothing may be reported: a skip is only real once
	// the batch that drops the colliding enrollment commits.
	if result.Skipped != 0 || result.Transferred != 0 || result.Deleted != 0 {
		t.Errorf("result = %+v, want all-zero accounting after a fully failed batch", result)
	}
}
