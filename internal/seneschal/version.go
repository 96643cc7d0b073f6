// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package seneschal

// Version is set at compile time.
var Version string

// Component identifies this program in log output and connection metadata.
var Component = "seneschal"
