// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package graph provides a directed graph over key-addressable values and a
// topological sort based on Kahn's algorithm.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Value is anything that can be stored in a Graph. The key fully determines
// identity: two values with the same key are the same vertex.
type Value interface {
	Key() string
}

// Graph is a directed graph. An edge u→v means "u depends on v". Both
// adjacency directions are indexed so that Kahn's algorithm can walk
// dependants cheaply.
type Graph struct {
	vertices  map[string]Value
	order     []string // insertion order of vertex keys
	edgesFrom map[string]map[string]struct{} // vertex → its dependencies
	edgesTo   map[string]map[string]struct{} // vertex → its dependants
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		vertices:  make(map[string]Value),
		edgesFrom: make(map[string]map[string]struct{}),
		edgesTo:   make(map[string]map[string]struct{}),
	}
}

// AddVertex inserts a value as a vertex. Inserting a value with a known key
// replaces the stored value but keeps the vertex's edges and its position in
// the insertion order.
func (g *Graph) AddVertex(v Value) {
	key := v.Key()
	if _, exists := g.vertices[key]; !exists {
		g.order = append(g.order, key)
	}
	g.vertices[key] = v
}

// AddEdge records that `from` depends on `to`. Both endpoints must already
// be vertices of this graph.
func (g *Graph) AddEdge(from, to Value) error {
	fromKey, toKey := from.Key(), to.Key()
	if _, ok := g.vertices[fromKey]; !ok {
		return fmt.Errorf("cannot add edge %s -> %s: %s is not a vertex of this graph", fromKey, toKey, fromKey)
	}
	if _, ok := g.vertices[toKey]; !ok {
		return fmt.Errorf("cannot add edge %s -> %s: %s is not a vertex of this graph", fromKey, toKey, toKey)
	}
	insertEdge(g.edgesFrom, fromKey, toKey)
	insertEdge(g.edgesTo, toKey, fromKey)
	return nil
}

func insertEdge(index map[string]map[string]struct{}, from, to string) {
	set := index[from]
	if set == nil {
		set = make(map[string]struct{})
		index[from] = set
	}
	set[to] = struct{}{}
}

// RemoveEdge deletes the edge from→to if it exists.
func (g *Graph) RemoveEdge(fromKey, toKey string) {
	delete(g.edgesFrom[fromKey], toKey)
	delete(g.edgesTo[toKey], fromKey)
}

// Contains reports whether a vertex with the value's key exists.
func (g *Graph) Contains(v Value) bool {
	_, ok := g.vertices[v.Key()]
	return ok
}

// Get returns the stored value for a key, or nil.
func (g *Graph) Get(key string) Value {
	return g.vertices[key]
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	return len(g.vertices)
}

// Values returns all vertex values in insertion order.
func (g *Graph) Values() []Value {
	result := make([]Value, 0, len(g.order))
	for _, key := range g.order {
		result = append(result, g.vertices[key])
	}
	return result
}

// Clone returns an independent copy of the graph. The vertex values are
// shared, the adjacency indices are not.
func (g *Graph) Clone() *Graph {
	c := New()
	for _, key := range g.order {
		c.AddVertex(g.vertices[key])
	}
	for fromKey, targets := range g.edgesFrom {
		for toKey := range targets {
			insertEdge(c.edgesFrom, fromKey, toKey)
			insertEdge(c.edgesTo, toKey, fromKey)
		}
	}
	return c
}

func (g *Graph) hasEdges() bool {
	for _, targets := range g.edgesFrom {
		if len(targets) > 0 {
			return true
		}
	}
	return false
}

// TopologicalSortKahn returns the vertex values ordered such that every
// dependency comes before its dependants. Ties are broken by vertex key so
// that the order is stable across runs. An error is reported when the graph
// has a cycle, or when a non-empty graph has no dependency-free vertex to
// start from.
func (g *Graph) TopologicalSortKahn() ([]Value, error) {
	work := g.Clone()

	var startSet []string
	for _, key := range work.order {
		if len(work.edgesFrom[key]) == 0 {
			startSet = append(startSet, key)
		}
	}
	sort.Strings(startSet)

	if len(startSet) == 0 && work.Len() > 0 {
		return nil, errors.New("graph has no vertex without dependencies")
	}

	var result []Value
	for len(startSet) > 0 {
		key := startSet[0]
		startSet = startSet[1:]
		result = append(result, g.vertices[key])

		dependants := make([]string, 0, len(work.edgesTo[key]))
		for depKey := range work.edgesTo[key] {
			dependants = append(dependants, depKey)
		}
		sort.Strings(dependants)

		for _, depKey := range dependants {
			work.RemoveEdge(depKey, key)
			if len(work.edgesFrom[depKey]) == 0 {
				startSet = insertSorted(startSet, depKey)
			}
		}
	}

	if work.hasEdges() {
		return nil, errors.New("graph has at least one cycle")
	}
	return result, nil
}

func insertSorted(keys []string, key string) []string {
	idx := sort.SearchStrings(keys, key)
	keys = append(keys, "")
	copy(keys[idx+1:], keys[idx:])
	keys[idx] = key
	return keys
}
