// Package tasks implements the playlist tracking core: resolving full track
// sets across pagination, reconciling a tracked copy against its source while
// honoring the exclusion set, creating and tearing down pairings, and running
// recurring syncs on a schedule.
//
// The reconciliation order is load-bearing. A pass records inferred removals
// as dislikes before it computes additions, so a track the user deleted from
// their copy is never re-added by the same pass that noticed it was gone.
package tasks
