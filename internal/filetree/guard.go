package filetree

import "github.com/starford/texflow/internal/models"

// CanMove reports whether sourceID may be re-parented under targetID.
//
// Moving to the root (models.RootID) is always allowed for a known source.
// Otherwise the target must be an existing folder that is neither the source
// itself nor one of its descendants. Parent links are followed with a
// visited set, so a corrupt cycle in records cannot hang the check.
func CanMove(records []models.Record, sourceID, targetID string) bool {
	byID := index(records)
	if _, ok := byID[sourceID]; !ok {
		return false
	}
	if targetID == models.RootID {
		return true
	}
	target, ok := byID[targetID]
	if !ok || !target.IsFolder() || targetID == sourceID {
		return false
	}

	seen := map[string]bool{}
	for cur := target.ParentID; cur != models.RootID; {
		if cur == sourceID {
			return false
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		parent, ok := byID[cur]
		if !ok {
			break
		}
		cur = parent.ParentID
	}
	return true
}

// IsNoop reports whether moving sourceID under targetID would leave the
// record where it already is.
func IsNoop(records []models.Record, sourceID, targetID string) bool {
	r, ok := index(records)[sourceID]
	return ok && r.ParentID == targetID
}

// Descendants returns the IDs of every record below id, not including id.
func Descendants(records []models.Record, id string) map[string]struct{} {
	children := make(map[string][]string)
	for _, r := range records {
		if r.ParentID != models.RootID && r.ParentID != r.ID {
			children[r.ParentID] = append(children[r.ParentID], r.ID)
		}
	}

	out := make(map[string]struct{})
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if _, dup := out[c]; dup || c == id {
				continue
			}
			out[c] = struct{}{}
			queue = append(queue, c)
		}
	}
	return out
}

func index(records []models.Record) map[string]models.Record {
	m := make(map[string]models.Record, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}
