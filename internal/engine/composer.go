package engine

import (
	"strings"

	"rampline/internal/domain"
)

// AddPart appends partID unless it is already present.
func AddPart(partIDs []string, partID string) []string {
	for _, id := range partIDs {
		if id == partID {
			return partIDs
		}
	}
	return append(partIDs, partID)
}

// RemovePart returns the list without partID; absent IDs are a no-op.
// The input slice is left untouched.
func RemovePart(partIDs []string, partID string) []string {
	out := make([]string, 0, len(partIDs))
	for _, id := range partIDs {
		if id != partID {
			out = append(out, id)
		}
	}
	return out
}

// ReorderParts moves the element at from to position to. Both indexes must
// be in range; on error the input slice is returned unchanged.
func ReorderParts(partIDs []string, from, to int) ([]string, error) {
	n := len(partIDs)
	if from < 0 || from >= n {
		return partIDs, InvalidIndexError{Index: from, Len: n}
	}
	if to < 0 || to >= n {
		return partIDs, InvalidIndexError{Index: to, Len: n}
	}
	if from == to {
		return partIDs, nil
	}
	out := make([]string, 0, n)
	out = append(out, partIDs[:from]...)
	out = append(out, partIDs[from+1:]...)
	out = append(out[:to], append([]string{partIDs[from]}, out[to:]...)...)
	return out, nil
}

func validateTemplateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return validationf("template name must not be empty")
	}
	return nil
}

func validateRoleKey(key string) error {
	if !domain.ValidRole(key) {
		return validationf("unknown role key %q", key)
	}
	return nil
}
