// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package objects

import (
	"fmt"

	"github.com/sapcc/seneschal/internal/graph"
)

// Schema is a schema within a managed database. Its optional owner
// materializes as a SchemaOwner link during graph construction.
type Schema struct {
	object
	database string
	owner    string
}

// NewSchema builds a Schema. The owner, if given, must resolve to a
// registered Group or User.
func NewSchema(reg Registry, database, name, owner string, present bool) (*Schema, error) {
	s := &Schema{object{name: name, present: present, reg: reg}, database, owner}
	s.addDependency(databaseRef(database))
	if owner != "" {
		role, err := resolveRole(reg, owner, present)
		if err != nil {
			return nil, err
		}
		s.addDependency(role)
	}
	return s, nil
}

// schemaRef builds a Schema usable as a dependency reference.
func schemaRef(database, name string) *Schema {
	return &Schema{object{name: name, present: true}, database, ""}
}

// Key implements the Object interface.
func (s *Schema) Key() string {
	return fmt.Sprintf("Schema(%s.%s)", s.database, s.name)
}

// Name implements the Creatable interface.
func (s *Schema) Name() string { return s.name }

// SQLKind implements the Creatable interface.
func (s *Schema) SQLKind() string { return "SCHEMA" }

// Database returns the database the schema lives in.
func (s *Schema) Database() string { return s.database }

// Owner returns the declared owner, or "".
func (s *Schema) Owner() string { return s.owner }

// AddToGraph implements the Object interface.
func (s *Schema) AddToGraph(g *graph.Graph) error {
	err := addToGraph(g, s)
	if err != nil {
		return err
	}
	if s.owner != "" {
		link, err := NewSchemaOwner(s.reg, s.database, s.name, s.owner, s.present)
		if err != nil {
			return err
		}
		return link.AddToGraph(g)
	}
	return nil
}

// StatementsToCreate implements the Object interface.
func (s *Schema) StatementsToCreate() ([]Statement, error) {
	return []Statement{CreateStatement{Obj: s, On: OnDatabase(s.database)}}, nil
}

// StatementsToDrop implements the Object interface.
func (s *Schema) StatementsToDrop() ([]Statement, error) {
	return []Statement{DropStatement{Obj: s, On: OnDatabase(s.database)}}, nil
}

// SchemaOwner is the ownership link between a Schema and a role. It is
// introduced into the graph by the Schema.
type SchemaOwner struct {
	database string
	schema   string
	owner    string
	present  bool
	deps     []Object
}

// NewSchemaOwner builds a SchemaOwner link.
func NewSchemaOwner(reg Registry, database, schema, owner string, present bool) (*SchemaOwner, error) {
	role, err := resolveRole(reg, owner, present)
	if err != nil {
		return nil, err
	}
	return &SchemaOwner{
		database: database,
		schema:   schema,
		owner:    owner,
		present:  present,
		deps:     []Object{schemaRef(database, schema), role},
	}, nil
}

func (*SchemaOwner) isLink() {}

// Database returns the database of the owned schema.
func (so *SchemaOwner) Database() string { return so.database }

// Schema returns the owned schema.
func (so *SchemaOwner) Schema() string { return so.schema }

// Owner returns the owning role.
func (so *SchemaOwner) Owner() string { return so.owner }

// Present implements the Object interface.
func (so *SchemaOwner) Present() bool { return so.present }

// Key implements the Object interface.
func (so *SchemaOwner) Key() string {
	return fmt.Sprintf("SchemaOwner(%s.%s+%s)", so.database, so.schema, so.owner)
}

// Dependencies implements the Object interface.
func (so *SchemaOwner) Dependencies() []Object { return so.deps }

// AddToGraph implements the Object interface.
func (so *SchemaOwner) AddToGraph(g *graph.Graph) error {
	return addToGraph(g, so)
}

// StatementsToCreate implements the Object interface.
func (so *SchemaOwner) StatementsToCreate() ([]Statement, error) {
	return []Statement{
		TextOn(OnDatabase(so.database), fmt.Sprintf("ALTER SCHEMA %s OWNER TO %s", so.schema, so.owner)),
	}, nil
}

// StatementsToDrop implements the Object interface.
func (so *SchemaOwner) StatementsToDrop() ([]Statement, error) { return nil, nil }

// StatementsToMaintain implements the Object interface.
func (so *SchemaOwner) StatementsToMaintain() ([]Statement, error) { return nil, nil }

// SchemaPrivilege grants a set of schema-level privileges to a role.
type SchemaPrivilege struct {
	object
	database   string
	schema     string
	grantee    string
	privileges PrivilegeSet
}

// NewSchemaPrivilege builds a SchemaPrivilege. The privileges argument
// accepts a string, a list of strings, or "ALL".
func NewSchemaPrivilege(reg Registry, database, schema, grantee string, privileges any, present bool) (*SchemaPrivilege, error) {
	parsed, err := ParsePrivileges(privileges, SchemaPrivileges)
	if err != nil {
		return nil, err
	}
	sp := &SchemaPrivilege{
		object:     object{present: present, reg: reg},
		database:   database,
		schema:     schema,
		grantee:    grantee,
		privileges: parsed,
	}
	err = sp.finishInit(reg, present)
	if err != nil {
		return nil, err
	}
	return sp, nil
}

func (sp *SchemaPrivilege) finishInit(reg Registry, present bool) error {
	if len(sp.privileges) == 0 {
		return fmt.Errorf("schema privilege for %s on %s.%s needs at least one privilege", sp.grantee, sp.database, sp.schema)
	}
	sp.addDependency(databaseRef(sp.database))
	sp.addDependency(schemaRef(sp.database, sp.schema))
	role, err := resolveRole(reg, sp.grantee, present)
	if err != nil {
		return err
	}
	sp.addDependency(role)
	return nil
}

// Key implements the Object interface.
func (sp *SchemaPrivilege) Key() string {
	return fmt.Sprintf("SchemaPrivilege(%s@%s.%s:%s)", sp.grantee, sp.database, sp.schema, sp.privileges)
}

// Database returns the database of the schema.
func (sp *SchemaPrivilege) Database() string { return sp.database }

// Schema returns the schema the privileges apply to.
func (sp *SchemaPrivilege) Schema() string { return sp.schema }

// Grantee returns the role the privileges are granted to.
func (sp *SchemaPrivilege) Grantee() string { return sp.grantee }

// Privileges returns the granted privilege set.
func (sp *SchemaPrivilege) Privileges() PrivilegeSet { return sp.privileges }

// AddToGraph implements the Object interface.
func (sp *SchemaPrivilege) AddToGraph(g *graph.Graph) error {
	return addToGraph(g, sp)
}

// StatementsToCreate implements the Object interface.
func (sp *SchemaPrivilege) StatementsToCreate() ([]Statement, error) {
	target := OnDatabase(sp.database)
	var stmts []Statement
	if !sp.privileges.Equal(SchemaPrivileges.All) {
		stmts = append(stmts, TextOn(target, fmt.Sprintf("REVOKE ALL ON SCHEMA %s FROM %s", sp.schema, sp.grantee)))
	}
	stmts = append(stmts, TextOn(target, fmt.Sprintf("GRANT %s ON SCHEMA %s TO %s", sp.privileges.Clause(), sp.schema, sp.grantee)))
	return []Statement{TransactionOfStatements{Statements: stmts, On: target}}, nil
}

// StatementsToDrop implements the Object interface.
func (sp *SchemaPrivilege) StatementsToDrop() ([]Statement, error) {
	return []Statement{
		TextOn(OnDatabase(sp.database), fmt.Sprintf("REVOKE ALL ON SCHEMA %s FROM %s", sp.schema, sp.grantee)),
	}, nil
}

// SchemaTablesPrivilege grants a set of table-level privileges on all
// tables of a schema. Privileges on individual tables are not supported.
// It can serve as the target of a DefaultPrivilege so that future tables
// are covered as well.
type SchemaTablesPrivilege struct {
	SchemaPrivilege
}

// NewSchemaTablesPrivilege builds a SchemaTablesPrivilege.
func NewSchemaTablesPrivilege(reg Registry, database, schema, grantee string, privileges any, present bool) (*SchemaTablesPrivilege, error) {
	parsed, err := ParsePrivileges(privileges, TablePrivileges)
	if err != nil {
		return nil, err
	}
	stp := &SchemaTablesPrivilege{SchemaPrivilege{
		object:     object{present: present, reg: reg},
		database:   database,
		schema:     schema,
		grantee:    grantee,
		privileges: parsed,
	}}
	err = stp.finishInit(reg, present)
	if err != nil {
		return nil, err
	}
	return stp, nil
}

// Key implements the Object interface.
func (stp *SchemaTablesPrivilege) Key() string {
	return fmt.Sprintf("SchemaTablesPrivilege(%s@%s.%s:%s)", stp.grantee, stp.database, stp.schema, stp.privileges)
}

// AddToGraph implements the Object interface.
func (stp *SchemaTablesPrivilege) AddToGraph(g *graph.Graph) error {
	return addToGraph(g, stp)
}

// StatementsToCreate implements the Object interface.
func (stp *SchemaTablesPrivilege) StatementsToCreate() ([]Statement, error) {
	target := OnDatabase(stp.database)
	var stmts []Statement
	if !stp.privileges.Equal(TablePrivileges.All) {
		stmts = append(stmts, TextOn(target, fmt.Sprintf("REVOKE ALL ON ALL TABLES IN SCHEMA %s FROM %s", stp.schema, stp.grantee)))
	}
	stmts = append(stmts, TextOn(target, fmt.Sprintf("GRANT %s ON ALL TABLES IN SCHEMA %s TO %s", stp.privileges.Clause(), stp.schema, stp.grantee)))
	return []Statement{TransactionOfStatements{Statements: stmts, On: target}}, nil
}

// StatementsToDrop implements the Object interface.
func (stp *SchemaTablesPrivilege) StatementsToDrop() ([]Statement, error) {
	return []Statement{
		TextOn(OnDatabase(stp.database), fmt.Sprintf("REVOKE %s ON ALL TABLES IN SCHEMA %s FROM %s", stp.privileges.Clause(), stp.schema, stp.grantee)),
	}, nil
}

// defaultPrivilegeClause returns the GRANT or REVOKE clause in the form
// usable with ALTER DEFAULT PRIVILEGES.
func (stp *SchemaTablesPrivilege) defaultPrivilegeClause(privileges PrivilegeSet, grant bool) string {
	if grant {
		return fmt.Sprintf("GRANT %s ON TABLES TO %s", privileges.Clause(), stp.grantee)
	}
	return fmt.Sprintf("REVOKE %s ON TABLES FROM %s", privileges.Clause(), stp.grantee)
}
