package sched

import "testing"

func TestTreeInsertFirstNext(t *testing.T) {
	tr := &tree{}
	keys := []uint32{50, 10, 30, 20, 40}
	nodes := make([]*node, len(keys))
	for i, k := range keys {
		n := &node{key: k}
		nodes[i] = n
		tr.insert(n)
	}

	var got []uint32
	for n := tr.first(); n != nil; n = tr.next(n) {
		got = append(got, n.key)
	}
	want := []uint32{10, 20, 30, 40, 50}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTreeDuplicateKeysOrderedByInsertion(t *testing.T) {
	tr := &tree{}
	var nodes []*node
	for i := 0; i < 5; i++ {
		n := &node{key: 7}
		nodes = append(nodes, n)
		tr.insert(n)
	}
	cur := tr.first()
	for i := 0; i < 5; i++ {
		if cur != nodes[i] {
			t.Fatalf("duplicate order mismatch at %d", i)
		}
		cur = tr.next(cur)
	}
	if cur != nil {
		t.Fatalf("expected nil past the end")
	}
}

func TestTreeRemoveIdempotent(t *testing.T) {
	tr := &tree{}
	n := &node{key: 5}
	tr.insert(n)
	tr.remove(n)
	if n.linked {
		t.Fatalf("node still linked after remove")
	}
	tr.remove(n) // must not panic
	if tr.root != nil {
		t.Fatalf("tree should be empty")
	}
}

func TestTreeLookupGE(t *testing.T) {
	tr := &tree{}
	for _, k := range []uint32{10, 20, 30, 40} {
		tr.insert(&node{key: k})
	}
	cases := []struct {
		k    uint32
		want uint32
		none bool
	}{
		{k: 0, want: 10},
		{k: 10, want: 10},
		{k: 15, want: 20},
		{k: 40, want: 40},
		{k: 41, none: true},
	}
	for _, c := range cases {
		got := tr.lookupGE(c.k)
		if c.none {
			if got != nil {
				t.Fatalf("lookupGE(%d): want none, got %d", c.k, got.key)
			}
			continue
		}
		if got == nil || got.key != c.want {
			t.Fatalf("lookupGE(%d): want %d, got %v", c.k, c.want, got)
		}
	}
}

func TestTreeRemoveMiddlePreservesOrder(t *testing.T) {
	tr := &tree{}
	nodes := map[uint32]*node{}
	for _, k := range []uint32{1, 2, 3, 4, 5} {
		n := &node{key: k}
		nodes[k] = n
		tr.insert(n)
	}
	tr.remove(nodes[3])

	var got []uint32
	for n := tr.first(); n != nil; n = tr.next(n) {
		got = append(got, n.key)
	}
	want := []uint32{1, 2, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
