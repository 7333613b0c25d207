package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"github.com/hazyhaar/medrecon/pkg/store"
)

// Group is one cluster of records judged to refer to the same person.
// Members are ordered by creation time ascending and always number >= 2.
type Group struct {
	Key     string          `json:"key"`
	Members []store.Patient `json:"members"`
}

// Progress receives (current, total) after each yield interval of the
// outer comparison loop.
type Progress func(current, total int)

// Scanner runs the pairwise duplicate scan.
type Scanner struct {
	// YieldEvery is the number of outer-loop iterations between
	// cancellation checks and scheduler yields. Default 25.
	YieldEvery int
	// OnProgress, when set, receives incremental scan progress.
	OnProgress Progress
	Logger     *slog.Logger
}

// Scan compares every unordered pair of patients and returns the duplicate
// clusters, largest first. The comparison loop only reads, so the periodic
// yield exists purely to keep a host process responsive; cancellation via
// ctx discards partial results.
func (s *Scanner) Scan(ctx context.Context, patients []store.Patient) ([]Group, error) {
	yieldEvery := s.YieldEvery
	if yieldEvery <= 0 {
		yieldEvery = 25
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	n := len(patients)
	candidates := make([]candidate, n)
	for i, p := range patients {
		candidates[i] = newCandidate(p)
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		if i%yieldEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("duplicate scan cancelled: %w", err)
			}
			runtime.Gosched()
			if s.OnProgress != nil {
				s.OnProgress(i, n)
			}
		}
		for j := i + 1; j < n; j++ {
			if match(candidates[i], candidates[j]) {
				uf.union(i, j)
			}
		}
	}
	if s.OnProgress != nil {
		s.OnProgress(n, n)
	}

	groups := collect(uf, patients)
	logger.Info("duplicate scan complete", "patients", n, "groups", len(groups))
	return groups, nil
}

// collect groups indices by root parent and emits clusters of size >= 2,
// sorted by size descending, members by creation time ascending. The
// cluster key is the id of its earliest-created member, which is stable
// across rescans of the same data.
func collect(uf *unionFind, patients []store.Patient) []Group {
	byRoot := make(map[int][]int)
	for i := range patients {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], i)
	}

	var groups []Group
	for _, idxs := range byRoot {
		if len(idxs) < 2 {
			continue
		}
		members := make([]store.Patient, len(idxs))
		for k, i := range idxs {
			members[k] = patients[i]
		}
		sort.Slice(members, func(a, b int) bool {
			if !members[a].CreatedAt.Equal(members[b].CreatedAt) {
				return members[a].CreatedAt.Before(members[b].CreatedAt)
			}
			return members[a].ID < members[b].ID
		})
		groups = append(groups, Group{Key: members[0].ID, Members: members})
	}

	sort.Slice(groups, func(a, b int) bool {
		if len(groups[a].Members) != len(groups[b].Members) {
			return len(groups[a].Members) > len(groups[b].Members)
		}
		return groups[a].Key < groups[b].Key
	})
	return groups
}
