package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/pailas/core/model"
)

// Descendants returns every descendant of the order, children before their
// own children.
func Descendants(ctx context.Context, r Reader, id int64) ([]model.ProductionOrder, error) {
	var out []model.ProductionOrder
	queue := []int64{id}
	seen := map[int64]bool{id: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		kids, err := r.Children(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, k := range kids {
			if seen[k.ID] {
				continue
			}
			seen[k.ID] = true
			out = append(out, k)
			queue = append(queue, k.ID)
		}
	}
	return out, nil
}

// Tree loads the order and nests its descendants under it.
func Tree(ctx context.Context, r Reader, id int64) (model.OrderNode, error) {
	root, err := r.Order(ctx, id)
	if err != nil {
		return model.OrderNode{}, err
	}
	return buildNode(ctx, r, root, map[int64]bool{id: true})
}

func buildNode(ctx context.Context, r Reader, o model.ProductionOrder, seen map[int64]bool) (model.OrderNode, error) {
	node := model.OrderNode{ProductionOrder: o, Children: []model.OrderNode{}}
	kids, err := r.Children(ctx, o.ID)
	if err != nil {
		return model.OrderNode{}, err
	}
	for _, k := range kids {
		if seen[k.ID] {
			continue
		}
		seen[k.ID] = true
		child, err := buildNode(ctx, r, k, seen)
		if err != nil {
			return model.OrderNode{}, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// CheckForest verifies that the child to parent links contain no cycle.
// Links to ids absent from the map end a walk.
func CheckForest(parents map[int64]int64) error {
	ids := make([]int64, 0, len(parents))
	for id := range parents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	done := make(map[int64]bool, len(parents))
	for _, id := range ids {
		path := map[int64]bool{}
		for cur, ok := id, true; ok && !done[cur]; cur, ok = parents[cur] {
			if path[cur] {
				return fmt.Errorf("order %d: %w", cur, ErrParentCycle)
			}
			path[cur] = true
		}
		for n := range path {
			done[n] = true
		}
	}
	return nil
}
