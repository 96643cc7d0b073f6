// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package dbconn

import (
	"testing"

	"github.com/sapcc/go-bits/assert"
)

func TestBufferedResult(t *testing.T) {
	result := &bufferedResult{rows: [][]any{
		{"sales", "devops"},
		{"marketing", "datascience"},
	}}

	scalar, err := result.Scalar()
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "scalar", scalar, any("sales"))

	rows, err := result.GetAll("name", "owner")
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "rows", rows, []Row{
		{"name": "sales", "owner": "devops"},
		{"name": "marketing", "owner": "datascience"},
	})

	// fewer requested columns than present is fine
	rows, err = result.GetAll("name")
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "rows", rows, []Row{{"name": "sales"}, {"name": "marketing"}})

	// more requested columns than present is not
	_, err = result.GetAll("name", "owner", "extra")
	if err == nil {
		t.Fatal("expected an error, got none")
	}

	// GetOne wants exactly zero or one row
	_, err = result.GetOne("name")
	if err == nil {
		t.Fatal("expected an error, got none")
	}
}

func TestBufferedResultEmpty(t *testing.T) {
	result := &bufferedResult{}

	_, err := result.Scalar()
	if err == nil {
		t.Fatal("expected an error, got none")
	}

	rows, err := result.GetAll("name")
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "rows", rows, []Row{})

	row, err := result.GetOne("name")
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	if row != nil {
		t.Errorf("expected no row, got %v", row)
	}
}
