// Package process lists host processes and indexes them for parent/child
// traversal.
package process

import "sort"

// Info is one row of the host process table.
type Info struct {
	PID  int
	PPID int
	Name string
	Cmd  string
}

// Table indexes a process listing by pid and by parent pid. The children
// index is built once at construction.
type Table struct {
	byPID    map[int]Info
	children map[int][]int
}

// NewTable indexes list. Later duplicates of a pid replace earlier ones.
// Self-parented entries are never linked as their own child.
func NewTable(list []Info) *Table {
	t := &Table{
		byPID:    make(map[int]Info, len(list)),
		children: make(map[int][]int),
	}
	for _, p := range list {
		t.byPID[p.PID] = p
	}
	for pid, p := range t.byPID {
		if p.PPID == pid || p.PPID <= 0 {
			continue
		}
		t.children[p.PPID] = append(t.children[p.PPID], pid)
	}
	for _, kids := range t.children {
		sort.Ints(kids)
	}
	return t
}

// Len returns the number of processes.
func (t *Table) Len() int { return len(t.byPID) }

// Get returns the process with the given pid.
func (t *Table) Get(pid int) (Info, bool) {
	p, ok := t.byPID[pid]
	return p, ok
}

// Children returns the direct children of pid in ascending pid order.
func (t *Table) Children(pid int) []int {
	return append([]int(nil), t.children[pid]...)
}

// All returns every process in ascending pid order.
func (t *Table) All() []Info {
	out := make([]Info, 0, len(t.byPID))
	for _, p := range t.byPID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// Filter returns processes for which fn is true, in ascending pid order.
func (t *Table) Filter(fn func(Info) bool) []Info {
	var out []Info
	for _, p := range t.All() {
		if fn(p) {
			out = append(out, p)
		}
	}
	return out
}

// Walk visits every descendant of root depth-first, iteratively, calling fn
// for each. Each pid is visited at most once, so malformed parent links
// cannot loop. Returning false from fn stops the walk.
func (t *Table) Walk(root int, fn func(Info) bool) {
	visited := map[int]bool{root: true}
	stack := make([]int, 0, 16)
	kids := t.children[root]
	for i := len(kids) - 1; i >= 0; i-- {
		stack = append(stack, kids[i])
	}
	for len(stack) > 0 {
		pid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[pid] {
			continue
		}
		visited[pid] = true

		p, ok := t.byPID[pid]
		if !ok {
			continue
		}
		if !fn(p) {
			return
		}
		kids := t.children[pid]
		for i := len(kids) - 1; i >= 0; i-- {
			if !visited[kids[i]] {
				stack = append(stack, kids[i])
			}
		}
	}
}
