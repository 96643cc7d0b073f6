// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package objects

import (
	"fmt"

	"github.com/sapcc/seneschal/internal/graph"
)

// Database is a database of the cluster. Its optional owner materializes as
// a DatabaseOwner link during graph construction.
type Database struct {
	object
	owner string
}

// NewDatabase builds a Database. The owner, if given, must resolve to a
// registered Group or User.
func NewDatabase(reg Registry, name, owner string, present bool) (*Database, error) {
	d := &Database{object{name: name, present: present, reg: reg}, owner}
	if owner != "" {
		role, err := resolveRole(reg, owner, present)
		if err != nil {
			return nil, err
		}
		d.addDependency(role)
	}
	return d, nil
}

// databaseRef builds a Database usable as a dependency reference.
func databaseRef(name string) *Database {
	return &Database{object{name: name, present: true}, ""}
}

// Key implements the Object interface.
func (d *Database) Key() string {
	return fmt.Sprintf("Database(%s)", d.name)
}

// Name implements the Creatable interface.
func (d *Database) Name() string { return d.name }

// SQLKind implements the Creatable interface.
func (d *Database) SQLKind() string { return "DATABASE" }

// Owner returns the declared owner, or "".
func (d *Database) Owner() string { return d.owner }

// AddToGraph implements the Object interface.
func (d *Database) AddToGraph(g *graph.Graph) error {
	err := addToGraph(g, d)
	if err != nil {
		return err
	}
	if d.owner != "" {
		link, err := NewDatabaseOwner(d.reg, d.name, d.owner, d.present)
		if err != nil {
			return err
		}
		return link.AddToGraph(g)
	}
	return nil
}

// StatementsToCreate implements the Object interface. The owner is not set
// here; that is the DatabaseOwner link's responsibility.
func (d *Database) StatementsToCreate() ([]Statement, error) {
	return []Statement{CreateStatement{Obj: d}}, nil
}

// StatementsToDrop implements the Object interface.
func (d *Database) StatementsToDrop() ([]Statement, error) {
	return []Statement{DropStatement{Obj: d}}, nil
}

// StatementsToMaintain implements the Object interface. Managed databases
// never allow access through the public pseudo-group. This cannot be
// expressed as a tracked privilege object because the privileges of public
// are not loaded (public does not appear in pg_roles), and because a
// freshly created database would not have existed at state-loading time.
func (d *Database) StatementsToMaintain() ([]Statement, error) {
	return []Statement{
		Text(fmt.Sprintf("REVOKE ALL PRIVILEGES ON DATABASE %s FROM GROUP public", d.name)),
	}, nil
}

// DatabaseOwner is the ownership link between a Database and a role. It is
// introduced into the graph by the Database.
type DatabaseOwner struct {
	database string
	owner    string
	present  bool
	deps     []Object
}

// NewDatabaseOwner builds a DatabaseOwner link.
func NewDatabaseOwner(reg Registry, database, owner string, present bool) (*DatabaseOwner, error) {
	role, err := resolveRole(reg, owner, present)
	if err != nil {
		return nil, err
	}
	return &DatabaseOwner{
		database: database,
		owner:    owner,
		present:  present,
		deps:     []Object{databaseRef(database), role},
	}, nil
}

func (*DatabaseOwner) isLink() {}

// Database returns the owned database.
func (do *DatabaseOwner) Database() string { return do.database }

// Owner returns the owning role.
func (do *DatabaseOwner) Owner() string { return do.owner }

// Present implements the Object interface.
func (do *DatabaseOwner) Present() bool { return do.present }

// Key implements the Object interface.
func (do *DatabaseOwner) Key() string {
	return fmt.Sprintf("DatabaseOwner(%s+%s)", do.database, do.owner)
}

// Dependencies implements the Object interface.
func (do *DatabaseOwner) Dependencies() []Object { return do.deps }

// AddToGraph implements the Object interface.
func (do *DatabaseOwner) AddToGraph(g *graph.Graph) error {
	return addToGraph(g, do)
}

// StatementsToCreate implements the Object interface.
func (do *DatabaseOwner) StatementsToCreate() ([]Statement, error) {
	return []Statement{Text(fmt.Sprintf("ALTER DATABASE %s OWNER TO %s", do.database, do.owner))}, nil
}

// StatementsToDrop implements the Object interface. Ownership is not
// revoked on its own; dropping the database or the role takes care of it.
func (do *DatabaseOwner) StatementsToDrop() ([]Statement, error) { return nil, nil }

// StatementsToMaintain implements the Object interface.
func (do *DatabaseOwner) StatementsToMaintain() ([]Statement, error) { return nil, nil }

// DatabasePrivilege grants a set of database-level privileges to a role.
type DatabasePrivilege struct {
	object
	database   string
	grantee    string
	privileges PrivilegeSet
}

// NewDatabasePrivilege builds a DatabasePrivilege. The privileges argument
// accepts a string, a list of strings, or "ALL".
func NewDatabasePrivilege(reg Registry, database, grantee string, privileges any, present bool) (*DatabasePrivilege, error) {
	parsed, err := ParsePrivileges(privileges, DatabasePrivileges)
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("database privilege for %s on %s needs at least one privilege", grantee, database)
	}
	dp := &DatabasePrivilege{
		object:     object{present: present, reg: reg},
		database:   database,
		grantee:    grantee,
		privileges: parsed,
	}
	dp.addDependency(databaseRef(database))
	role, err := resolveRole(reg, grantee, present)
	if err != nil {
		return nil, err
	}
	dp.addDependency(role)
	return dp, nil
}

// Key implements the Object interface.
func (dp *DatabasePrivilege) Key() string {
	return fmt.Sprintf("DatabasePrivilege(%s@%s:%s)", dp.grantee, dp.database, dp.privileges)
}

// Database returns the database the privileges apply to.
func (dp *DatabasePrivilege) Database() string { return dp.database }

// Grantee returns the role the privileges are granted to.
func (dp *DatabasePrivilege) Grantee() string { return dp.grantee }

// Privileges returns the granted privilege set.
func (dp *DatabasePrivilege) Privileges() PrivilegeSet { return dp.privileges }

// AddToGraph implements the Object interface.
func (dp *DatabasePrivilege) AddToGraph(g *graph.Graph) error {
	return addToGraph(g, dp)
}

// StatementsToCreate implements the Object interface. Unless the full
// privilege set is requested, existing privileges are revoked first so that
// the grant leaves exactly the requested set.
func (dp *DatabasePrivilege) StatementsToCreate() ([]Statement, error) {
	var stmts []Statement
	if !dp.privileges.Equal(DatabasePrivileges.All) {
		stmts = append(stmts, Text(fmt.Sprintf("REVOKE ALL ON DATABASE %s FROM %s", dp.database, dp.grantee)))
	}
	stmts = append(stmts, Text(fmt.Sprintf("GRANT %s ON DATABASE %s TO %s", dp.privileges.Clause(), dp.database, dp.grantee)))
	return []Statement{TransactionOfStatements{Statements: stmts}}, nil
}

// StatementsToDrop implements the Object interface.
func (dp *DatabasePrivilege) StatementsToDrop() ([]Statement, error) {
	return []Statement{
		Text(fmt.Sprintf("REVOKE %s ON DATABASE %s FROM %s", dp.privileges.Clause(), dp.database, dp.grantee)),
	}, nil
}
