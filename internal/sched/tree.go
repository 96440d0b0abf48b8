package sched

import "math/rand/v2"

// node is the ordered-tree primitive spec.md §4.1 asks for: an intrusive,
// duplicate-key-tolerant, wrap-aware-capable ordered set keyed by a plain
// uint32. Wrap semantics (LookBack + First fallback) live in the callers
// (Scheduler.WakeExpiredTasks, Scheduler.collectBatch); the tree itself just
// needs unsigned numeric order plus a stable tie-break among duplicates.
//
// Balance comes from treap priorities rather than an Elastic Binary Tree
// (the source's choice) or a red-black tree: a treap gives the same
// expected O(log n) insert/remove/successor bounds with a much smaller
// implementation, at the cost of expected rather than worst-case balance.
type node struct {
	key      uint32
	seq      uint64 // tie-break among duplicate keys: insertion order
	priority uint64
	left     *node
	right    *node
	parent   *node
	linked   bool
	owner    *Task // back-reference, set once when the task is created
}

// tree is one instance of the ordered-tree primitive; the scheduler owns
// two (run queue, wait queue).
type tree struct {
	root   *node
	nextSeq uint64
}

func less(a, b *node) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.seq < b.seq
}

// insert places n into the tree, assigning it the next insertion sequence
// number so duplicate keys are ordered by insertion among themselves.
func (t *tree) insert(n *node) {
	if n == nil || n.linked {
		return
	}
	n.seq = t.nextSeq
	t.nextSeq++
	n.priority = rand.Uint64()
	n.left, n.right, n.parent = nil, nil, nil

	var parent *node
	cur := t.root
	for cur != nil {
		parent = cur
		if less(n, cur) {
			cur = cur.left
		} else {
			cur = cur.right
		}
	}
	n.parent = parent
	switch {
	case parent == nil:
		t.root = n
	case less(n, parent):
		parent.left = n
	default:
		parent.right = n
	}
	n.linked = true

	for n.parent != nil && n.parent.priority > n.priority {
		if n.parent.left == n {
			t.rotateRight(n.parent)
		} else {
			t.rotateLeft(n.parent)
		}
	}
}

// remove unlinks n from the tree; idempotent if n is already unlinked.
func (t *tree) remove(n *node) {
	if n == nil || !n.linked {
		return
	}
	for n.left != nil || n.right != nil {
		switch {
		case n.left == nil:
			t.rotateLeft(n)
		case n.right == nil:
			t.rotateRight(n)
		case n.left.priority < n.right.priority:
			t.rotateRight(n)
		default:
			t.rotateLeft(n)
		}
	}
	if n.parent == nil {
		t.root = nil
	} else if n.parent.left == n {
		n.parent.left = nil
	} else {
		n.parent.right = nil
	}
	n.parent, n.left, n.right = nil, nil, nil
	n.linked = false
}

// first returns the node with the numerically smallest key, or nil.
func (t *tree) first() *node {
	cur := t.root
	if cur == nil {
		return nil
	}
	for cur.left != nil {
		cur = cur.left
	}
	return cur
}

// next returns the in-order successor of n, or nil past the end.
func (t *tree) next(n *node) *node {
	if n == nil {
		return nil
	}
	if n.right != nil {
		cur := n.right
		for cur.left != nil {
			cur = cur.left
		}
		return cur
	}
	cur := n
	for cur.parent != nil && cur.parent.right == cur {
		cur = cur.parent
	}
	return cur.parent
}

// lookupGE returns the smallest-key node whose key is >= k in plain
// unsigned arithmetic, or nil if every key is < k. Wrap handling (treating
// the key space as cyclic) is layered on top by the caller.
func (t *tree) lookupGE(k uint32) *node {
	cur := t.root
	var candidate *node
	for cur != nil {
		if cur.key >= k {
			candidate = cur
			cur = cur.left
		} else {
			cur = cur.right
		}
	}
	return candidate
}

func (t *tree) rotateLeft(x *node) {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x.parent.left == x {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *tree) rotateRight(x *node) {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x.parent.left == x {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.right = x
	x.parent = y
}
