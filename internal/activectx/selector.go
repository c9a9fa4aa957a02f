// selector.go implements the pure active-membership selection policy.
package activectx

import "github.com/hearthhub/hearthhub/internal/db/models"

// SelectActive picks the membership to activate from an ordered membership list.
//
// Policy, in order:
//  1. Empty list → nil (no active context).
//  2. preferredGroupID matches a membership's group → that membership.
//  3. Otherwise the first membership in the list. The list order is the server's
//     order; "first" is a deliberate, deterministic tie-break, not a heuristic.
//
// The function is pure: no I/O, no side effects, identical inputs always yield
// the identical selection.
func SelectActive(memberships []models.Membership, preferredGroupID string) *models.Membership {
	if len(memberships) == 0 {
		return nil
	}

	if preferredGroupID != "" {
		for i := range memberships {
			if memberships[i].Group.ID == preferredGroupID {
				return &memberships[i]
			}
		}
	}

	return &memberships[0]
}
