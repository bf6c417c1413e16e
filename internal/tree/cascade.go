package tree

import (
	"context"
	"fmt"

	"github.com/agentic-research/stratum/api"
	"github.com/agentic-research/stratum/internal/store"
)

// DeleteSubtree removes a node and every descendant as one atomic
// operation, returning the number of nodes deleted.
//
// The walk uses an explicit stack, not recursion, so pathological depth
// cannot blow the goroutine stack. Discovery order is parent before child,
// which makes the reverse order leaves-first — each Delete call removes a
// node whose children are already gone, satisfying the store's no-orphans
// rule at every step. The whole walk runs inside one transaction: a
// failure mid-delete rolls everything back.
func DeleteSubtree(ctx context.Context, s store.Store, owner, id string) (int, error) {
	deleted := 0
	err := s.Transact(ctx, func(tx store.Store) error {
		if _, err := tx.Get(ctx, owner, id); err != nil {
			return err
		}

		stack := []string{id}
		seen := make(map[string]struct{})
		var order []string
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, dup := seen[cur]; dup {
				return fmt.Errorf("cycle detected at node %s: %w", cur, api.ErrConflict)
			}
			seen[cur] = struct{}{}
			order = append(order, cur)

			children, err := tx.ListChildren(ctx, owner, cur)
			if err != nil {
				return err
			}
			for _, child := range children {
				stack = append(stack, child.ID)
			}
		}

		for i := len(order) - 1; i >= 0; i-- {
			if err := tx.Delete(ctx, owner, order[i]); err != nil {
				return err
			}
		}
		deleted = len(order)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
