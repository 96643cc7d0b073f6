// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package setup contains the reconciliation engine: the registry of desired
// objects, the dependency graph, the statement generator and the dispatcher
// that routes statements to database connections.
package setup

import (
	"fmt"
	"sort"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/seneschal/internal/dbconn"
	"github.com/sapcc/seneschal/internal/graph"
	"github.com/sapcc/seneschal/internal/objects"
	"github.com/sapcc/seneschal/internal/state"
)

// Setup is the registry of desired objects and the engine that reconciles
// them against the cluster behind the master connection.
type Setup struct {
	objs  map[string]objects.Object
	order []string // insertion order of object keys

	mc    dbconn.Connection            // may be nil (inspection without a cluster)
	conns map[string]dbconn.Connection // cloned per-database connections
}

// New builds a Setup around the given master connection. The public
// pseudo-group and the master user are pre-registered so that they can be
// referenced as owners and grantees without being declared.
func New(master dbconn.Connection) *Setup {
	s := &Setup{
		objs:  make(map[string]objects.Object),
		conns: make(map[string]dbconn.Connection),
		mc:    master,
	}
	implicit := []objects.Object{objects.NewGroup(s, "public", true)}
	if s.MasterUser() != "" {
		implicit = append(implicit, objects.NewUser(s, s.MasterUser(), objects.UserOptions{}, true))
	}
	for _, obj := range implicit {
		err := s.Register(obj)
		if err != nil {
			// implicit objects have no dependencies and cannot clash
			panic(err.Error())
		}
	}
	return s
}

// MasterUser implements the objects.Registry interface.
func (s *Setup) MasterUser() string {
	if s.mc == nil {
		return ""
	}
	return s.mc.Username()
}

// MasterDatabase implements the objects.Registry interface.
func (s *Setup) MasterDatabase() string {
	if s.mc == nil {
		return ""
	}
	return s.mc.Database()
}

// ResolveRole implements the objects.Registry interface.
func (s *Setup) ResolveRole(name string, present bool) (objects.Object, error) {
	if obj, exists := s.objs[fmt.Sprintf("Group(%s)", name)]; exists {
		return obj, nil
	}
	if obj, exists := s.objs[fmt.Sprintf("User(%s)", name)]; exists {
		return obj, nil
	}
	return nil, fmt.Errorf("ambiguous role %q - declare it as Group or User before referencing it in another object", name)
}

// Contains reports whether an object with this key is registered.
func (s *Setup) Contains(key string) bool {
	_, exists := s.objs[key]
	return exists
}

// Get returns the registered object with this key, or nil.
func (s *Setup) Get(key string) objects.Object {
	return s.objs[key]
}

// Register adds a desired object to the registry. All dependencies of the
// object must already be registered, and a present object cannot depend on
// an absent one. Link entities are not registered; their parents introduce
// them into the graph.
func (s *Setup) Register(obj objects.Object) error {
	if _, isLink := obj.(objects.Link); isLink {
		return fmt.Errorf("%s is a link entity and cannot be registered directly", obj.Key())
	}
	if _, exists := s.objs[obj.Key()]; exists {
		return fmt.Errorf("%s is already registered", obj.Key())
	}
	for _, dep := range obj.Dependencies() {
		registered, exists := s.objs[dep.Key()]
		if !exists {
			return fmt.Errorf("%s depends on %s but it is not managed by this setup", obj.Key(), dep.Key())
		}
		if obj.Present() && !registered.Present() {
			return fmt.Errorf("%s depends on %s but it is marked as not present", obj.Key(), dep.Key())
		}
	}
	s.objs[obj.Key()] = obj
	s.order = append(s.order, obj.Key())
	return nil
}

// ManagedDatabases returns the names of all registered Database objects in
// sorted order.
func (s *Setup) ManagedDatabases() []string {
	var names []string
	for _, key := range s.order {
		if db, ok := s.objs[key].(*objects.Database); ok {
			names = append(names, db.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (s *Setup) databaseObject(name string) *objects.Database {
	db, _ := s.objs[fmt.Sprintf("Database(%s)", name)].(*objects.Database)
	return db
}

// Connection implements the state.ConnectionSource interface. The empty
// string and the master database yield the master connection; other
// databases get a lazily cloned and cached connection.
func (s *Setup) Connection(database string) (dbconn.Connection, error) {
	if s.mc == nil {
		return nil, fmt.Errorf("no master connection configured")
	}
	if database == "" || database == s.mc.Database() {
		return s.mc, nil
	}
	if conn, exists := s.conns[database]; exists {
		return conn, nil
	}
	conn, err := s.mc.Clone(database)
	if err != nil {
		return nil, err
	}
	s.conns[database] = conn
	return conn, nil
}

func (s *Setup) closeConnection(database string) error {
	conn, exists := s.conns[database]
	if !exists {
		return nil
	}
	delete(s.conns, database)
	return conn.Close()
}

// Close closes all connections held by this setup, including the master
// connection.
func (s *Setup) Close() error {
	var firstErr error
	for database, conn := range s.conns {
		err := conn.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.conns, database)
	}
	if s.mc != nil {
		err := s.mc.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// generateGraph builds the dependency graph over all registered objects and
// the link entities they introduce.
func (s *Setup) generateGraph() (*graph.Graph, error) {
	g := graph.New()
	for _, key := range s.order {
		err := s.objs[key].AddToGraph(g)
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// TopologicalOrder returns all graph vertices ordered such that every
// object comes after its dependencies.
func (s *Setup) TopologicalOrder() ([]objects.Object, error) {
	g, err := s.generateGraph()
	if err != nil {
		return nil, err
	}
	values, err := g.TopologicalSortKahn()
	if err != nil {
		return nil, err
	}
	result := make([]objects.Object, len(values))
	for idx, value := range values {
		obj, ok := value.(objects.Object)
		if !ok {
			return nil, fmt.Errorf("graph vertex %s is not an object", value.Key())
		}
		result[idx] = obj
	}
	return result, nil
}

// LoadState queries the cluster and returns the observed-state snapshot.
func (s *Setup) LoadState() (*state.Snapshot, error) {
	return state.Load(s, s.ManagedDatabases())
}

// GenerateStatements computes the statements that make the cluster match
// the registry, given a snapshot of the observed state: first the create
// and update statements in dependency order, then the maintain statements,
// then the drop statements in reverse dependency order.
func (s *Setup) GenerateStatements(snapshot *state.Snapshot) ([]objects.Statement, error) {
	ordered, err := s.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	var result []objects.Statement
	appendStmts := func(stmts []objects.Statement, err error) error {
		if err != nil {
			return err
		}
		result = append(result, stmts...)
		return nil
	}

	for _, obj := range ordered {
		current := snapshot.Classify(obj)
		switch {
		case current == state.IsAbsent && obj.Present():
			err = appendStmts(obj.StatementsToCreate())
		case current == state.IsUnknown && obj.Present():
			err = appendStmts(obj.StatementsToCreate())
		case current == state.IsDifferent && obj.Present():
			err = appendStmts(objects.StatementsToUpdate(obj))
		}
		if err != nil {
			return nil, err
		}
	}

	for _, obj := range ordered {
		if obj.Present() {
			err = appendStmts(obj.StatementsToMaintain())
			if err != nil {
				return nil, err
			}
		}
	}

	for idx := len(ordered) - 1; idx >= 0; idx-- {
		obj := ordered[idx]
		current := snapshot.Classify(obj)
		switch {
		case current == state.IsPresent && !obj.Present():
			err = appendStmts(obj.StatementsToDrop())
		case current == state.IsUnknown && !obj.Present():
			err = appendStmts(obj.StatementsToDrop())
		}
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Execute reconciles the cluster with the registry. With dryRun set, the
// observed state is still loaded and the statements are generated, but they
// are only logged instead of executed.
func (s *Setup) Execute(dryRun bool) error {
	snapshot, err := s.LoadState()
	if err != nil {
		return err
	}
	stmts, err := s.GenerateStatements(snapshot)
	if err != nil {
		return err
	}

	for _, stmt := range stmts {
		if stmt.Target().IsAllDatabases() {
			// The snapshot is not consulted here: a database may not have
			// existed at load time but exist by now, or the other way
			// around. The declared "present" flag is the reliable signal.
			for _, datname := range s.ManagedDatabases() {
				db := s.databaseObject(datname)
				if db == nil || !db.Present() {
					logg.Info("skipping statement %q on non-present database %q", stmt.Query(), datname)
					continue
				}
				err = s.dispatch(stmt, datname, dryRun)
				if err != nil {
					return err
				}
			}
		} else {
			err = s.dispatch(stmt, stmt.Target().DatabaseName(), dryRun)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatch executes one statement on the connection for the given database
// ("" meaning the master connection).
func (s *Setup) dispatch(stmt objects.Statement, database string, dryRun bool) error {
	conn, err := s.Connection(database)
	if err != nil {
		return err
	}

	if dryRun {
		if tx, ok := stmt.(objects.TransactionOfStatements); ok {
			for _, member := range tx.Statements {
				conn.LogQuery(member.Query(), true)
			}
		} else {
			conn.LogQuery(stmt.Query(), true)
		}
		return nil
	}

	// A DROP DATABASE conflicts with our own open session to that database.
	if drop, ok := stmt.(objects.DropStatement); ok {
		if db, ok := drop.Obj.(*objects.Database); ok {
			err = s.closeConnection(db.Name())
			if err != nil {
				return err
			}
		}
	}

	if tx, ok := stmt.(objects.TransactionOfStatements); ok {
		return s.dispatchTransaction(tx, conn)
	}
	_, err = conn.Execute(stmt.Query(), stmt.Params()...)
	return err
}

func (s *Setup) dispatchTransaction(stmt objects.TransactionOfStatements, conn dbconn.Connection) error {
	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer sqlext.RollbackUnlessCommitted(tx)
	for _, member := range stmt.Statements {
		target := member.Target()
		if target.IsAllDatabases() {
			return fmt.Errorf("statement %q inside a transaction cannot be routed to all databases", member.Query())
		}
		if target.DatabaseName() != "" && target.DatabaseName() != conn.Database() {
			return fmt.Errorf("statement %q is routed to database %q, but the transaction runs on %q",
				member.Query(), target.DatabaseName(), conn.Database())
		}
		err = tx.Execute(member.Query(), member.Params()...)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InspectRecord is one line of `seneschal inspect` output.
type InspectRecord struct {
	Index   int    `json:"index" yaml:"index"`
	Present bool   `json:"present" yaml:"present"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`
	Key     string `json:"key" yaml:"key"`
}

// InspectRecords lists all objects in topological order, optionally with
// their observed state.
func (s *Setup) InspectRecords(loadState bool) ([]InspectRecord, error) {
	var snapshot *state.Snapshot
	if loadState {
		var err error
		snapshot, err = s.LoadState()
		if err != nil {
			return nil, err
		}
	}
	ordered, err := s.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	records := make([]InspectRecord, len(ordered))
	for idx, obj := range ordered {
		record := InspectRecord{Index: idx + 1, Present: obj.Present(), Key: obj.Key()}
		if snapshot != nil {
			record.State = string(snapshot.Classify(obj))
		}
		records[idx] = record
	}
	return records, nil
}
