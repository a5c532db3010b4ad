package dedup

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownGroup is returned when a selection operation names a group key
	// that is not part of the current scan.
	ErrUnknownGroup = errors.New("unknown duplicate group")
)

// Selection holds the reviewer's per-group choices on top of a scan result:
// which groups are approved for merging and which member survives. It is
// plain data (JSON-serializable) so a review session can be parked in Redis
// between requests.
type Selection struct {
	Groups    []Group         `json:"groups"`
	Primaries map[string]uint `json:"primaries"` // group key -> chosen primary student ID
	Selected  map[string]bool `json:"selected"`  // group key -> approved for merge
}

// SelectedGroup is a group approved for merging together with the reviewer's
// primary choice. Secondaries keep the group's score order.
type SelectedGroup struct {
	Group        Group  `json:"group"`
	PrimaryID    uint   `json:"primary_id"`
	SecondaryIDs []uint `json:"secondary_ids"`
}

// NewSelection builds the default selection state for a scan: primaries
// default to each group's highest-scored member and no group is approved yet
// (merging is destructive, approval is explicit).
func NewSelection(groups []Group) *Selection {
	sel := &Selection{
		Groups:    groups,
		Primaries: make(map[string]uint, len(groups)),
		Selected:  make(map[string]bool, len(groups)),
	}
	for _, g := range groups {
		sel.Primaries[g.Key] = g.DefaultPrimaryID
		sel.Selected[g.Key] = false
	}
	return sel
}

func (s *Selection) group(key string) (Group, error) {
	for _, g := range s.Groups {
		if g.Key == key {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("%w: %s", ErrUnknownGroup, key)
}

// SetPrimary overrides the surviving record for a group. The chosen student
// must be a member of the group.
func (s *Selection) SetPrimary(key string, studentID uint) error {
	g, err := s.group(key)
	if err != nil {
		return err
	}
	if !g.HasMember(studentID) {
		return fmt.Errorf("student %d is not a member of group %s", studentID, key)
	}
	s.Primaries[key] = studentID
	return nil
}

// Toggle flips a group's approved-for-merge flag.
func (s *Selection) Toggle(key string) error {
	if _, err := s.group(key); err != nil {
		return err
	}
	s.Selected[key] = !s.Selected[key]
	return nil
}

// SelectAll approves every group.
func (s *Selection) SelectAll() {
	for _, g := range s.Groups {
		s.Selected[g.Key] = true
	}
}

// DeselectAll clears every approval.
func (s *Selection) DeselectAll() {
	for _, g := range s.Groups {
		s.Selected[g.Key] = false
	}
}

// ResetPrimaries restores every group's primary to its default
// (highest-scored) member.
func (s *Selection) ResetPrimaries() {
	for _, g := range s.Groups {
		s.Primaries[g.Key] = g.DefaultPrimaryID
	}
}

// SelectedCount returns how many groups are currently approved.
func (s *Selection) SelectedCount() int {
	n := 0
	for _, g := range s.Groups {
		if s.Selected[g.Key] {
			n++
		}
	}
	return n
}

// SelectedGroups returns the groups approved for merging that have a valid
// primary, in scan order, with secondaries in score order.
func (s *Selection) SelectedGroups() []SelectedGroup {
	out := make([]SelectedGroup, 0)
	for _, g := range s.Groups {
		if !s.Selected[g.Key] {
			continue
		}
		primary := s.Primaries[g.Key]
		if primary == 0 || !g.HasMember(primary) {
			continue
		}
		secondaries := make([]uint, 0, len(g.Members)-1)
		for _, m := range g.Members {
			if m.Student.ID != primary {
				secondaries = append(secondaries, m.Student.ID)
			}
		}
		out = append(out, SelectedGroup{Group: g, PrimaryID: primary, SecondaryIDs: secondaries})
	}
	return out
}
