// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package objects models the cluster-wide objects that the reconciler
// manages: roles, group memberships, databases, schemas, ownership links,
// privileges and default privileges. Each object knows its dependencies and
// how to emit the SQL statements that create, drop and maintain it.
package objects

import (
	"github.com/sapcc/seneschal/internal/graph"
)

// Registry is the part of the reconciler that objects need access to: role
// resolution for owner/grantee references, and the identity of the master
// connection.
type Registry interface {
	// ResolveRole returns the registered Group or User with this name, or an
	// error if the name is not registered as either.
	ResolveRole(name string, present bool) (Object, error)
	// MasterUser is the login name of the master connection, or "".
	MasterUser() string
	// MasterDatabase is the database of the master connection, or "".
	MasterDatabase() string
}

// Object is a desired cluster-wide object. Its key fully determines
// identity.
type Object interface {
	graph.Value
	Present() bool
	Dependencies() []Object
	// AddToGraph inserts this object, its dependency edges, and any link
	// entities it is the parent of.
	AddToGraph(g *graph.Graph) error

	// StatementsToCreate returns the statements that bring the object from
	// absent to present. Statements that a link entity owns (ownership,
	// membership) are emitted by the link, not here.
	StatementsToCreate() ([]Statement, error)
	// StatementsToDrop returns the statements that remove the object.
	StatementsToDrop() ([]Statement, error)
	// StatementsToMaintain returns idempotent statements that run on every
	// reconciliation while the object is present.
	StatementsToMaintain() ([]Statement, error)
}

// Updater is implemented by objects whose reconciliation of a detected
// difference is not simply re-running the create statements.
type Updater interface {
	StatementsToUpdate() ([]Statement, error)
}

// StatementsToUpdate returns the object's update statements, falling back to
// its create statements when the object does not implement Updater.
func StatementsToUpdate(obj Object) ([]Statement, error) {
	if u, ok := obj.(Updater); ok {
		return u.StatementsToUpdate()
	}
	return obj.StatementsToCreate()
}

// Link is an Object that models a relationship between two primary objects.
// Links are introduced into the graph by their parent object and must not be
// registered directly.
type Link interface {
	Object
	isLink()
}

// object carries the attributes shared by all object types.
type object struct {
	name    string
	present bool
	reg     Registry
	deps    []Object
}

// Present implements the Object interface.
func (o *object) Present() bool { return o.present }

// Dependencies implements the Object interface.
func (o *object) Dependencies() []Object { return o.deps }

func (o *object) addDependency(dep Object) {
	for _, existing := range o.deps {
		if existing.Key() == dep.Key() {
			return
		}
	}
	o.deps = append(o.deps, dep)
}

// Default statement contracts; overridden by types that emit something.

// StatementsToCreate implements the Object interface.
func (o *object) StatementsToCreate() ([]Statement, error) { return nil, nil }

// StatementsToDrop implements the Object interface.
func (o *object) StatementsToDrop() ([]Statement, error) { return nil, nil }

// StatementsToMaintain implements the Object interface.
func (o *object) StatementsToMaintain() ([]Statement, error) { return nil, nil }

// addToGraph inserts the object and its dependency edges. Dependency
// vertices must already exist, which the registration invariants guarantee.
func addToGraph(g *graph.Graph, self Object) error {
	g.AddVertex(self)
	for _, dep := range self.Dependencies() {
		if err := g.AddEdge(self, dep); err != nil {
			return err
		}
	}
	return nil
}

// resolveRole resolves a role name through the registry. Without a registry
// (only in tests and while constructing dependency references) it falls back
// to a group reference with that name.
func resolveRole(reg Registry, name string, present bool) (Object, error) {
	if reg == nil {
		return groupRef(name), nil
	}
	return reg.ResolveRole(name, present)
}
