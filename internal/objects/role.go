// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package objects

import (
	"fmt"
	"strings"

	"github.com/sapcc/seneschal/internal/graph"
	"github.com/sapcc/seneschal/internal/passwords"
)

// role carries the behavior shared by Group and User.
type role struct {
	object
	kind string // "GROUP" or "USER"
}

// Name implements the Creatable interface.
func (r *role) Name() string { return r.name }

// SQLKind implements the Creatable interface.
func (r *role) SQLKind() string { return r.kind }

// isManaged reports whether the engine may issue CREATE/DROP for this role.
// The public pseudo-group, the postgres superuser, pg_-prefixed system roles
// and the master user are externally managed.
func (r *role) isManaged() bool {
	lower := strings.ToLower(r.name)
	if lower == "public" || lower == "postgres" {
		return false
	}
	if strings.HasPrefix(lower, "pg_") {
		return false
	}
	if r.reg != nil && r.name == r.reg.MasterUser() {
		return false
	}
	return true
}

// StatementsToCreate implements the Object interface.
func (r *role) StatementsToCreate() ([]Statement, error) {
	if !r.isManaged() {
		return nil, nil
	}
	return []Statement{CreateStatement{Obj: r}}, nil
}

// StatementsToDrop implements the Object interface. Before the role can be
// dropped, everything it owns is reassigned to the master user and its
// rights on the public schema are revoked everywhere.
func (r *role) StatementsToDrop() ([]Statement, error) {
	if !r.isManaged() {
		return nil, nil
	}
	masterUser := ""
	masterDatabase := ""
	if r.reg != nil {
		masterUser = r.reg.MasterUser()
		masterDatabase = r.reg.MasterDatabase()
	}
	return []Statement{
		TextOn(OnAllDatabases(), fmt.Sprintf("REASSIGN OWNED BY %s TO %s", r.name, masterUser)),
		TextOn(OnAllDatabases(), fmt.Sprintf("REVOKE ALL ON SCHEMA public FROM %s", r.name)),
		TextOn(OnDatabase(masterDatabase), fmt.Sprintf("REVOKE ALL ON SCHEMA public FROM %s", r.name)),
		DropStatement{Obj: r},
	}, nil
}

// Group is a role without login.
type Group struct {
	role
}

// NewGroup builds a Group.
func NewGroup(reg Registry, name string, present bool) *Group {
	return &Group{role{object{name: name, present: present, reg: reg}, "GROUP"}}
}

// groupRef builds a Group usable as a dependency reference.
func groupRef(name string) *Group {
	return NewGroup(nil, name, true)
}

// Key implements the Object interface.
func (g *Group) Key() string {
	return fmt.Sprintf("Group(%s)", g.name)
}

// AddToGraph implements the Object interface.
func (g *Group) AddToGraph(gr *graph.Graph) error {
	return addToGraph(gr, g)
}

// User is a role with login. Groups the user belongs to and databases the
// user may connect to are declared on the user and materialize as
// GroupUser links and implicit CONNECT privileges during graph
// construction.
type User struct {
	role
	password  string
	groups    []string
	inherit   bool
	databases []string
}

// UserOptions are the optional attributes of a User.
type UserOptions struct {
	Password string
	Groups   []string
	// Inherit controls whether the user inherits privileges of its groups.
	// The default is off; group privileges are then used via SET ROLE.
	Inherit bool
	// Databases the user gets CONNECT on. A group's CONNECT privilege is not
	// inherited by default, so users commonly need their own.
	Databases []string
}

// NewUser builds a User.
func NewUser(reg Registry, name string, opts UserOptions, present bool) *User {
	u := &User{
		role:      role{object{name: name, present: present, reg: reg}, "USER"},
		password:  opts.Password,
		groups:    opts.Groups,
		inherit:   opts.Inherit,
		databases: opts.Databases,
	}
	for _, group := range u.groups {
		u.addDependency(groupRef(group))
	}
	for _, database := range u.databases {
		u.addDependency(databaseRef(database))
	}
	return u
}

// userRef builds a User usable as a dependency reference.
func userRef(name string) *User {
	return NewUser(nil, name, UserOptions{}, true)
}

// Key implements the Object interface.
func (u *User) Key() string {
	return fmt.Sprintf("User(%s)", u.name)
}

// AddToGraph implements the Object interface.
func (u *User) AddToGraph(g *graph.Graph) error {
	err := addToGraph(g, u)
	if err != nil {
		return err
	}
	for _, group := range u.groups {
		err = NewGroupUser(u.reg, group, u.name, u.present).AddToGraph(g)
		if err != nil {
			return err
		}
	}

	// Through the databases attribute the user only gets CONNECT. Other
	// privileges (CREATE, TEMPORARY) are assigned via a group role which the
	// user then assumes with SET ROLE.
	for _, database := range u.databases {
		priv, err := NewDatabasePrivilege(u.reg, database, u.name, Connect, u.present)
		if err != nil {
			return err
		}
		err = priv.AddToGraph(g)
		if err != nil {
			return err
		}
	}
	return nil
}

// StatementsToMaintain implements the Object interface. Externally managed
// users (most importantly the master user) are left alone.
func (u *User) StatementsToMaintain() ([]Statement, error) {
	if !u.isManaged() {
		return nil, nil
	}
	inheritSQL := "NOINHERIT"
	if u.inherit {
		inheritSQL = "INHERIT"
	}
	return []Statement{
		Text(fmt.Sprintf("ALTER USER %s WITH NOCREATEDB NOSUPERUSER %s %s", u.name, inheritSQL, u.passwordSQL())),
	}, nil
}

// passwordSQL returns the login clause of the maintain statement. Without a
// configured password the password is neither updated nor disabled.
func (u *User) passwordSQL() string {
	if u.password == "" {
		return "LOGIN"
	}
	hash := u.password
	if !strings.HasPrefix(hash, "md5") {
		hash = passwords.MD5Hash(u.name, u.password)
	}
	return fmt.Sprintf("LOGIN PASSWORD '%s'", hash)
}

// GroupUser is the membership link between a Group and a User. It is
// introduced into the graph by the User.
type GroupUser struct {
	group   string
	user    string
	present bool
	reg     Registry
}

// NewGroupUser builds a GroupUser link.
func NewGroupUser(reg Registry, group, user string, present bool) *GroupUser {
	return &GroupUser{group: group, user: user, present: present, reg: reg}
}

func (*GroupUser) isLink() {}

// Group returns the group side of the membership.
func (gu *GroupUser) Group() string { return gu.group }

// User returns the user side of the membership.
func (gu *GroupUser) User() string { return gu.user }

// Present implements the Object interface.
func (gu *GroupUser) Present() bool { return gu.present }

// Key implements the Object interface.
func (gu *GroupUser) Key() string {
	return fmt.Sprintf("GroupUser(%s+%s)", gu.group, gu.user)
}

// Dependencies implements the Object interface.
func (gu *GroupUser) Dependencies() []Object {
	return []Object{groupRef(gu.group), userRef(gu.user)}
}

// AddToGraph implements the Object interface.
func (gu *GroupUser) AddToGraph(g *graph.Graph) error {
	return addToGraph(g, gu)
}

// StatementsToCreate implements the Object interface.
func (gu *GroupUser) StatementsToCreate() ([]Statement, error) {
	return []Statement{Text(fmt.Sprintf("ALTER GROUP %s ADD USER %s", gu.group, gu.user))}, nil
}

// StatementsToDrop implements the Object interface.
func (gu *GroupUser) StatementsToDrop() ([]Statement, error) {
	return []Statement{Text(fmt.Sprintf("ALTER GROUP %s DROP USER %s", gu.group, gu.user))}, nil
}

// StatementsToMaintain implements the Object interface.
func (gu *GroupUser) StatementsToMaintain() ([]Statement, error) { return nil, nil }
