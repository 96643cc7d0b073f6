// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/sapcc/go-bits/logg"
	"github.com/spf13/cobra"

	applycmd "github.com/sapcc/seneschal/cmd/apply"
	inspectcmd "github.com/sapcc/seneschal/cmd/inspect"
	passwordcmd "github.com/sapcc/seneschal/cmd/password"
	"github.com/sapcc/seneschal/internal/seneschal"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "seneschal",
		Short:   "Declarative management of PostgreSQL cluster-wide objects",
		Long:    "Seneschal reconciles roles, databases, schemas and privileges of a PostgreSQL cluster with a declarative definition.",
		Version: seneschal.Version,
		Args:    cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			seneschal.ApplyLogLevel()
		},
		Run: func(cmd *cobra.Command, args []string) {
			must(cmd.Help())
		},
	}
	seneschal.AddGlobalFlags(rootCmd)

	applycmd.AddCommandTo(rootCmd)
	inspectcmd.AddCommandTo(rootCmd)
	passwordcmd.AddCommandTo(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logg.Fatal(err.Error())
	}
}

func must(err error) {
	if err != nil {
		logg.Fatal(err.Error())
	}
}
