// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package objects

import (
	"testing"

	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/seneschal/internal/graph"
)

func TestSchemaStatements(t *testing.T) {
	queries := queryFlattener(t)
	reg := newFakeRegistry()
	reg.addGroup("devops")
	schema, err := NewSchema(reg, "sales", "private", "devops", true)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	assert.DeepEqual(t, "key", schema.Key(), "Schema(sales.private)")

	stmts, err := schema.StatementsToCreate()
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "create", queries(stmts, nil), []string{"CREATE SCHEMA private"})
	assert.DeepEqual(t, "create routing", stmts[0].Target(), OnDatabase("sales"))
	assert.DeepEqual(t, "drop", queries(schema.StatementsToDrop()), []string{"DROP SCHEMA private"})
	assert.DeepEqual(t, "maintain", queries(schema.StatementsToMaintain()), []string(nil))
}

func TestSchemaIntroducesOwnerLink(t *testing.T) {
	queries := queryFlattener(t)
	reg := newFakeRegistry()
	reg.addGroup("devops")
	schema, err := NewSchema(reg, "sales", "private", "devops", true)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	g := graph.New()
	g.AddVertex(reg.roles["devops"].(*Group))
	g.AddVertex(databaseRef("sales"))
	err = schema.AddToGraph(g)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	link, ok := g.Get("SchemaOwner(sales.private+devops)").(*SchemaOwner)
	if !ok {
		t.Fatal("expected a SchemaOwner vertex in the graph")
	}
	stmts, err := link.StatementsToCreate()
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "create", queries(stmts, nil), []string{"ALTER SCHEMA private OWNER TO devops"})
	assert.DeepEqual(t, "create routing", stmts[0].Target(), OnDatabase("sales"))
}

func TestSchemaPrivilegeStatements(t *testing.T) {
	queries := queryFlattener(t)
	reg := newFakeRegistry()
	reg.addGroup("datascience")

	sp, err := NewSchemaPrivilege(reg, "sales", "private", "datascience", "USAGE", true)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "key", sp.Key(), "SchemaPrivilege(datascience@sales.private:USAGE)")
	assert.DeepEqual(t, "create", queries(sp.StatementsToCreate()), []string{
		"REVOKE ALL ON SCHEMA private FROM datascience",
		"GRANT USAGE ON SCHEMA private TO datascience",
	})
	assert.DeepEqual(t, "drop", queries(sp.StatementsToDrop()),
		[]string{"REVOKE ALL ON SCHEMA private FROM datascience"})

	sp, err = NewSchemaPrivilege(reg, "sales", "private", "datascience", "ALL", true)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "create", queries(sp.StatementsToCreate()),
		[]string{"GRANT CREATE, USAGE ON SCHEMA private TO datascience"})
}

func TestSchemaTablesPrivilegeStatements(t *testing.T) {
	queries := queryFlattener(t)
	reg := newFakeRegistry()
	reg.addGroup("datascience")

	stp, err := NewSchemaTablesPrivilege(reg, "sales", "private", "datascience", []string{"SELECT", "INSERT"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "key", stp.Key(), "SchemaTablesPrivilege(datascience@sales.private:INSERT,SELECT)")

	stmts, err := stp.StatementsToCreate()
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	tx, ok := stmts[0].(TransactionOfStatements)
	if !ok {
		t.Fatalf("expected a transaction, got %T", stmts[0])
	}
	assert.DeepEqual(t, "transaction routing", tx.Target(), OnDatabase("sales"))
	assert.DeepEqual(t, "create", queries(stmts, nil), []string{
		"REVOKE ALL ON ALL TABLES IN SCHEMA private FROM datascience",
		"GRANT INSERT, SELECT ON ALL TABLES IN SCHEMA private TO datascience",
	})
	assert.DeepEqual(t, "drop", queries(stp.StatementsToDrop()),
		[]string{"REVOKE INSERT, SELECT ON ALL TABLES IN SCHEMA private FROM datascience"})
}
