// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package setup

import (
	"fmt"

	"github.com/sapcc/seneschal/internal/objects"
)

// The spec types mirror the attributes of the declarable object types. The
// Present pointers default to true when unset, both here and in definition
// files.

// GroupSpec declares a Group.
type GroupSpec struct {
	Name    string
	Present *bool
}

// UserSpec declares a User.
type UserSpec struct {
	Name      string
	Password  string
	Groups    []string
	Inherit   bool
	Databases []string
	Present   *bool
}

// DatabaseSpec declares a Database.
type DatabaseSpec struct {
	Name    string
	Owner   string
	Present *bool
}

// SchemaSpec declares a Schema.
type SchemaSpec struct {
	Database string
	Name     string
	Owner    string
	Present  *bool
}

// DatabasePrivilegeSpec declares a DatabasePrivilege. Privileges accepts a
// single string, a list of strings, or "ALL".
type DatabasePrivilegeSpec struct {
	Database   string
	Grantee    string
	Privileges any
	Present    *bool
}

// SchemaPrivilegeSpec declares a SchemaPrivilege.
type SchemaPrivilegeSpec struct {
	Database   string
	Schema     string
	Grantee    string
	Privileges any
	Present    *bool
}

// SchemaTablesPrivilegeSpec declares a SchemaTablesPrivilege. The Type
// field is only used when this spec appears as the target of a
// DefaultPrivilegeSpec; it may then restate the type name.
type SchemaTablesPrivilegeSpec struct {
	Type       string
	Database   string
	Schema     string
	Grantee    string
	Privileges any
	Present    *bool
}

// DefaultPrivilegeSpec declares a DefaultPrivilege. The target names a
// SchemaTablesPrivilege that must be registered on its own.
type DefaultPrivilegeSpec struct {
	Grantor string
	Target  SchemaTablesPrivilegeSpec
	Present *bool
}

func presentValue(p *bool) bool {
	if p == nil {
		return true
	}
	return *p
}

// Group registers a group.
func (s *Setup) Group(spec GroupSpec) (*objects.Group, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("group needs a name")
	}
	obj := objects.NewGroup(s, spec.Name, presentValue(spec.Present))
	return obj, s.Register(obj)
}

// User registers a user.
func (s *Setup) User(spec UserSpec) (*objects.User, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("user needs a name")
	}
	obj := objects.NewUser(s, spec.Name, objects.UserOptions{
		Password:  spec.Password,
		Groups:    spec.Groups,
		Inherit:   spec.Inherit,
		Databases: spec.Databases,
	}, presentValue(spec.Present))
	return obj, s.Register(obj)
}

// Database registers a database.
func (s *Setup) Database(spec DatabaseSpec) (*objects.Database, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("database needs a name")
	}
	obj, err := objects.NewDatabase(s, spec.Name, spec.Owner, presentValue(spec.Present))
	if err != nil {
		return nil, err
	}
	return obj, s.Register(obj)
}

// Schema registers a schema.
func (s *Setup) Schema(spec SchemaSpec) (*objects.Schema, error) {
	if spec.Name == "" || spec.Database == "" {
		return nil, fmt.Errorf("schema needs a name and a database")
	}
	obj, err := objects.NewSchema(s, spec.Database, spec.Name, spec.Owner, presentValue(spec.Present))
	if err != nil {
		return nil, err
	}
	return obj, s.Register(obj)
}

// DatabasePrivilege registers a database privilege.
func (s *Setup) DatabasePrivilege(spec DatabasePrivilegeSpec) (*objects.DatabasePrivilege, error) {
	obj, err := objects.NewDatabasePrivilege(s, spec.Database, spec.Grantee, spec.Privileges, presentValue(spec.Present))
	if err != nil {
		return nil, err
	}
	return obj, s.Register(obj)
}

// SchemaPrivilege registers a schema privilege.
func (s *Setup) SchemaPrivilege(spec SchemaPrivilegeSpec) (*objects.SchemaPrivilege, error) {
	obj, err := objects.NewSchemaPrivilege(s, spec.Database, spec.Schema, spec.Grantee, spec.Privileges, presentValue(spec.Present))
	if err != nil {
		return nil, err
	}
	return obj, s.Register(obj)
}

// SchemaTablesPrivilege registers a privilege on all tables of a schema.
func (s *Setup) SchemaTablesPrivilege(spec SchemaTablesPrivilegeSpec) (*objects.SchemaTablesPrivilege, error) {
	obj, err := newSchemaTablesPrivilege(s, spec)
	if err != nil {
		return nil, err
	}
	return obj, s.Register(obj)
}

func newSchemaTablesPrivilege(s *Setup, spec SchemaTablesPrivilegeSpec) (*objects.SchemaTablesPrivilege, error) {
	if spec.Type != "" && spec.Type != "SchemaTablesPrivilege" {
		return nil, fmt.Errorf("expected a SchemaTablesPrivilege, got type %q", spec.Type)
	}
	return objects.NewSchemaTablesPrivilege(s, spec.Database, spec.Schema, spec.Grantee, spec.Privileges, presentValue(spec.Present))
}

// DefaultPrivilege registers a default privilege for the target's schema.
func (s *Setup) DefaultPrivilege(spec DefaultPrivilegeSpec) (*objects.DefaultPrivilege, error) {
	if spec.Grantor == "" {
		return nil, fmt.Errorf("default privilege needs a grantor")
	}
	target, err := newSchemaTablesPrivilege(s, spec.Target)
	if err != nil {
		return nil, err
	}
	obj, err := objects.NewDefaultPrivilege(s, spec.Grantor, target, presentValue(spec.Present))
	if err != nil {
		return nil, err
	}
	return obj, s.Register(obj)
}
