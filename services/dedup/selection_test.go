package dedup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
)

func testGroups(t *testing.T) []Group {
	t.Helper()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	students := []model.Student{
		{ID: 1, ExternalID: "1", Name: "김민수", School: "대구초", Grade: "초3", Status: model.StudentStatusActive},
		{ID: 2, ExternalID: "2", Name: "김민수", School: "대구초", Grade: "초3"},
		{ID: 3, ExternalID: "3", Name: "박지훈", School: "일중", Grade: "중1", Status: model.StudentStatusActive},
		{ID: 4, ExternalID: "4", Name: "박지훈", School: "일중", Grade: "중1"},
	}
	groups := BuildGroups(students, now)
	if len(groups) != 2 {
		t.Fatalf("fixture: got %d groups, want 2", len(groups))
	}
	return groups
}

func TestSelectionDefaults(t *testing.T) {
	groups := testGroups(t)
	sel := NewSelection(groups)

	if sel.SelectedCount() != 0 {
		t.Error("no group may be approved by default")
	}
	for _, g := range groups {
		if sel.Primaries[g.Key] != g.DefaultPrimaryID {
			t.Errorf("group %s: primary %d, want default %d", g.Key, sel.Primaries[g.Key], g.DefaultPrimaryID)
		}
	}
	if len(sel.SelectedGroups()) != 0 {
		t.Error("SelectedGroups must be empty before any approval")
	}
}

func TestSelectionSetPrimary(t *testing.T) {
	groups := testGroups(t)
	sel := NewSelection(groups)
	key := groups[0].Key

	// Override to the lower-scored member.
	other := groups[0].Members[1].Student.ID
	if err := sel.SetPrimary(key, other); err != nil {
		t.Fatalf("SetPrimary: %v", err)
	}
	if sel.Primaries[key] != other {
		t.Errorf("primary = %d, want %d", sel.Primaries[key], other)
	}

	// Non-members are rejected.
	if err := sel.SetPrimary(key, 999); err == nil {
		t.Error("SetPrimary must reject a non-member student")
	}
	if err := sel.SetPrimary("없는그룹", other); err == nil {
		t.Error("SetPrimary must reject an unknown group key")
	}

	// ResetPrimaries restores the default.
	sel.ResetPrimaries()
	if sel.Primaries[key] != groups[0].DefaultPrimaryID {
		t.Error("ResetPrimaries must restore the default primary")
	}
}

func TestSelectionToggleAndBulkOps(t *testing.T) {
	groups := testGroups(t)
	sel := NewSelection(groups)
	key := groups[0].Key

	if err := sel.Toggle(key); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if sel.SelectedCount() != 1 {
		t.Errorf("SelectedCount = %d, want 1", sel.SelectedCount())
	}

	sel.SelectAll()
	if sel.SelectedCount() != len(groups) {
		t.Errorf("SelectedCount = %d, want %d", sel.SelectedCount(), len(groups))
	}

	sel.DeselectAll()
	if sel.SelectedCount() != 0 {
		t.Errorf("SelectedCount = %d, want 0", sel.SelectedCount())
	}
}

func TestSelectionSelectedGroups(t *testing.T) {
	groups := testGroups(t)
	sel := NewSelection(groups)
	sel.SelectAll()

	selected := sel.SelectedGroups()
	if len(selected) != 2 {
		t.Fatalf("got %d selected groups, want 2", len(selected))
	}
	for _, sg := range selected {
		if sg.PrimaryID == 0 {
			t.Error("selected group without a primary")
		}
		if len(sg.SecondaryIDs) != len(sg.Group.Members)-1 {
			t.Errorf("group %s: %d secondaries, want %d", sg.Group.Key, len(sg.SecondaryIDs), len(sg.Group.Members)-1)
		}
		for _, id := range sg.SecondaryIDs {
			if id == sg.PrimaryID {
				t.Error("primary listed among secondaries")
			}
		}
	}
}

func TestSelectionRoundTripsThroughJSON(t *testing.T) {
	// Review sessions are parked in Redis as JSON between requests.
	sel := NewSelection(testGroups(t))
	sel.SelectAll()

	data, err := json.Marshal(sel)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored Selection
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.SelectedCount() != sel.SelectedCount() {
		t.Error("selection state lost in JSON round trip")
	}
	if len(restored.SelectedGroups()) != len(sel.SelectedGroups()) {
		t.Error("selected groups lost in JSON round trip")
	}
}
