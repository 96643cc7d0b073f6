// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"fmt"
	"strings"
)

// ACLEntry is one entry of an access control list as PostgreSQL encodes it:
// `grantee=privs/grantor`. Privileges stays in the compact one-letter
// encoding; see ExpandDatabasePrivileges.
type ACLEntry struct {
	Grantee    string
	Privileges string
	Grantor    string
}

// splitACLItems splits the textual form of an acl array (e.g.
// `{=Tc/postgres,"some role"=CTc/postgres}`) into its entries. Commas inside
// double quotes do not separate; surrounding quotes are stripped.
func splitACLItems(list string) []string {
	list = strings.TrimSpace(list)
	if strings.HasPrefix(list, "{") && strings.HasSuffix(list, "}") {
		list = list[1 : len(list)-1]
	}
	if list == "" {
		return nil
	}

	var items []string
	var current strings.Builder
	inQuotes := false
	flush := func() {
		item := current.String()
		current.Reset()
		if len(item) >= 2 && strings.HasPrefix(item, `"`) && strings.HasSuffix(item, `"`) {
			item = item[1 : len(item)-1]
		}
		if item != "" {
			items = append(items, item)
		}
	}
	for _, char := range list {
		switch {
		case char == '"':
			inQuotes = !inQuotes
			current.WriteRune(char)
		case char == ',' && !inQuotes:
			flush()
		default:
			current.WriteRune(char)
		}
	}
	flush()
	return items
}

// ParseACL parses the textual form of an acl array into its entries. An
// empty grantee denotes the public pseudo-group.
func ParseACL(acl string) ([]ACLEntry, error) {
	var entries []ACLEntry
	for _, item := range splitACLItems(acl) {
		grantee, rest, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("malformed ACL entry %q: missing %q", item, "=")
		}
		privs, grantor, ok := strings.Cut(rest, "/")
		if !ok {
			return nil, fmt.Errorf("malformed ACL entry %q: missing %q", item, "/")
		}
		if grantee == "" {
			grantee = "public"
		}
		entries = append(entries, ACLEntry{Grantee: grantee, Privileges: privs, Grantor: grantor})
	}
	return entries, nil
}

// databasePrivilegeLetters maps the compact encoding used in
// pg_database.datacl onto the canonical privilege names.
var databasePrivilegeLetters = map[rune]string{
	'c': "CONNECT",
	'C': "CREATE",
	'T': "TEMPORARY",
}

// ExpandDatabasePrivileges converts the compact privilege encoding of a
// database ACL entry into canonical privilege names.
func ExpandDatabasePrivileges(privs string) ([]string, error) {
	var names []string
	for _, letter := range privs {
		name, ok := databasePrivilegeLetters[letter]
		if !ok {
			return nil, fmt.Errorf("unknown database privilege letter %q", string(letter))
		}
		names = append(names, name)
	}
	return names, nil
}

// EncodeDatabasePrivileges is the inverse of ExpandDatabasePrivileges. It is
// used by tests to verify the round trip; the canonical letter order is
// C, T, c as PostgreSQL prints it.
func EncodeDatabasePrivileges(names []string) (string, error) {
	letters := map[string]string{"CREATE": "C", "TEMPORARY": "T", "CONNECT": "c"}
	var result strings.Builder
	for _, canonical := range []string{"CREATE", "TEMPORARY", "CONNECT"} {
		for _, name := range names {
			if name == canonical {
				result.WriteString(letters[canonical])
			}
		}
	}
	for _, name := range names {
		if _, ok := letters[name]; !ok {
			return "", fmt.Errorf("unknown database privilege %q", name)
		}
	}
	return result.String(), nil
}
