// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package inspectcmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sapcc/go-bits/logg"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sapcc/seneschal/internal/dbconn"
	"github.com/sapcc/seneschal/internal/seneschal"
	"github.com/sapcc/seneschal/internal/setup"
)

var (
	noCurrentState bool
	outputFormat   string
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "inspect <definition-file>",
		Short: "Show the declared objects and their observed state.",
		Long:  "Show the declared objects in dependency order, together with the state observed on the cluster.",
		Args:  cobra.ExactArgs(1),
		Run:   run,
	}
	cmd.Flags().BoolVar(&noCurrentState, "no-current-state", false, "Do not load the current state from the cluster.")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml.")
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
	records, err := s.InspectRecords(!noCurrentState)
	if err != nil {
		logg.Fatal(err.Error())
	}
	err = render(records)
	if err != nil {
		logg.Fatal(err.Error())
	}
}

func render(records []setup.InspectRecord) error {
	switch outputFormat {
	case "text":
		for _, record := range records {
			presentStr := "       "
			if record.Present {
				presentStr = "PRESENT"
			}
			fmt.Printf("%02d %s %-12s %s\n", record.Index, presentStr, record.State, record.Key)
		}
		return nil
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(records)
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}
