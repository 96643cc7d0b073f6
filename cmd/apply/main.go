// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package applycmd

import (
	"github.com/sapcc/go-bits/logg"
	"github.com/spf13/cobra"

	"github.com/sapcc/seneschal/internal/dbconn"
	"github.com/sapcc/seneschal/internal/seneschal"
	"github.com/sapcc/seneschal/internal/setup"
)

var dryRun bool

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "apply <definition-file>",
		Short: "Apply the changes necessary to provision the declared setup.",
		Long:  "Apply the changes necessary to provision the declared setup. Connection details are read from environment variables selected by --env-prefix.",
		Args:  cobra.ExactArgs(1),
		Run:   run,
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not execute any statements, just log what would be done.")
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	def, err := setup.LoadDefinitionFile(args[0])
	if err != nil {
		logg.Fatal(err.Error())
	}

	s := setup.New(dbconn.NewPostgresConnection(seneschal.ParseConnectionConfig()))
	defer func() {
		err := s.Close()
		if err != nil {
			logg.Error("error while closing connections: %s", err.Error())
		}
	}()

	err = s.ApplyDefinition(def)
	if err != nil {
		logg.Fatal(err.Error())
	}
	err = s.Execute(dryRun)
	if err != nil {
		logg.Fatal(err.Error())
	}
}
