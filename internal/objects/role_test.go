// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package objects

import (
	"fmt"
	"testing"

	"github.com/sapcc/go-bits/assert"
)

// fakeRegistry is a minimal Registry for tests of single objects.
type fakeRegistry struct {
	masterUser     string
	masterDatabase string
	roles          map[string]Object
}

func (r *fakeRegistry) ResolveRole(name string, present bool) (Object, error) {
	if obj, exists := r.roles[name]; exists {
		return obj, nil
	}
	return nil, fmt.Errorf("ambiguous role %q", name)
}

func (r *fakeRegistry) MasterUser() string     { return r.masterUser }
func (r *fakeRegistry) MasterDatabase() string { return r.masterDatabase }

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		masterUser:     "admin",
		masterDatabase: "postgres",
		roles:          make(map[string]Object),
	}
}

func (r *fakeRegistry) addGroup(name string) *Group {
	group := NewGroup(r, name, true)
	r.roles[name] = group
	return group
}

// queryFlattener returns a helper that flattens statements into their
// queries, expanding transaction groups, and fails the test on generator
// errors.
func queryFlattener(t *testing.T) func([]Statement, error) []string {
	return func(stmts []Statement, err error) []string {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}
		var queries []string
		for _, stmt := range stmts {
			if tx, ok := stmt.(TransactionOfStatements); ok {
				for _, member := range tx.Statements {
					queries = append(queries, member.Query())
				}
				continue
			}
			queries = append(queries, stmt.Query())
		}
		return queries
	}
}

func TestRoleKeys(t *testing.T) {
	assert.DeepEqual(t, "key", NewGroup(nil, "devops", true).Key(), "Group(devops)")
	assert.DeepEqual(t, "key", NewUser(nil, "johnny", UserOptions{}, false).Key(), "User(johnny)")
	assert.DeepEqual(t, "key", NewGroupUser(nil, "devops", "johnny", true).Key(), "GroupUser(devops+johnny)")
}

func TestGroupStatements(t *testing.T) {
	queries := queryFlattener(t)
	group := NewGroup(newFakeRegistry(), "devops", true)
	assert.DeepEqual(t, "create", queries(group.StatementsToCreate()), []string{"CREATE GROUP devops"})
	assert.DeepEqual(t, "drop", queries(group.StatementsToDrop()), []string{
		"REASSIGN OWNED BY devops TO admin",
		"REVOKE ALL ON SCHEMA public FROM devops",
		"REVOKE ALL ON SCHEMA public FROM devops",
		"DROP GROUP devops",
	})
}

func TestRoleDropRouting(t *testing.T) {
	stmts, err := NewGroup(newFakeRegistry(), "devops", false).StatementsToDrop()
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	if len(stmts) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(stmts))
	}
	if !stmts[0].Target().IsAllDatabases() || !stmts[1].Target().IsAllDatabases() {
		t.Error("reassign and revoke must be routed to all databases")
	}
	assert.DeepEqual(t, "database", stmts[2].Target().DatabaseName(), "postgres")
	assert.DeepEqual(t, "database", stmts[3].Target(), MasterTarget())
}

func TestForbiddenRolesEmitNothing(t *testing.T) {
	queries := queryFlattener(t)
	reg := newFakeRegistry()
	for _, name := range []string{"public", "postgres", "Postgres", "pg_monitor", "admin"} {
		group := NewGroup(reg, name, true)
		assert.DeepEqual(t, "create for "+name, queries(group.StatementsToCreate()), []string(nil))
		assert.DeepEqual(t, "drop for "+name, queries(group.StatementsToDrop()), []string(nil))
	}
}

func TestMasterUserMaintainsNothing(t *testing.T) {
	queries := queryFlattener(t)
	user := NewUser(newFakeRegistry(), "admin", UserOptions{}, true)
	assert.DeepEqual(t, "maintain", queries(user.StatementsToMaintain()), []string(nil))
}

func TestUserMaintain(t *testing.T) {
	queries := queryFlattener(t)
	testCases := []struct {
		name     string
		opts     UserOptions
		expected string
	}{
		{
			name:     "johnny",
			opts:     UserOptions{},
			expected: "ALTER USER johnny WITH NOCREATEDB NOSUPERUSER NOINHERIT LOGIN",
		},
		{
			name:     "johnny",
			opts:     UserOptions{Inherit: true},
			expected: "ALTER USER johnny WITH NOCREATEDB NOSUPERUSER INHERIT LOGIN",
		},
		{
			name: "johnny",
			opts: UserOptions{Password: "johnny"},
			// md5 of "johnnyjohnny"
			expected: "ALTER USER johnny WITH NOCREATEDB NOSUPERUSER NOINHERIT LOGIN PASSWORD 'md5e2471bbf363fbbb5fe138511de3e918a'",
		},
		{
			name:     "johnny",
			opts:     UserOptions{Password: "md5deadbeef"},
			expected: "ALTER USER johnny WITH NOCREATEDB NOSUPERUSER NOINHERIT LOGIN PASSWORD 'md5deadbeef'",
		},
	}
	for _, c := range testCases {
		user := NewUser(newFakeRegistry(), c.name, c.opts, true)
		assert.DeepEqual(t, "maintain", queries(user.StatementsToMaintain()), []string{c.expected})
	}
}

func TestUserDependencies(t *testing.T) {
	user := NewUser(nil, "johnny", UserOptions{Groups: []string{"devops", "analyst"}, Databases: []string{"sales"}}, true)
	var keys []string
	for _, dep := range user.Dependencies() {
		keys = append(keys, dep.Key())
	}
	assert.DeepEqual(t, "dependencies", keys, []string{"Group(devops)", "Group(analyst)", "Database(sales)"})
}

func TestGroupUserStatements(t *testing.T) {
	queries := queryFlattener(t)
	link := NewGroupUser(nil, "devops", "johnny", true)
	assert.DeepEqual(t, "create", queries(link.StatementsToCreate()), []string{"ALTER GROUP devops ADD USER johnny"})
	assert.DeepEqual(t, "drop", queries(link.StatementsToDrop()), []string{"ALTER GROUP devops DROP USER johnny"})
}
