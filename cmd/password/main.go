// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package passwordcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sapcc/seneschal/internal/passwords"
)

var password string

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "password <username>",
		Short: "Generate or hash a password for md5 authentication.",
		Long:  "Print the username, the provided or freshly generated password, and the md5 hash that PostgreSQL stores for it.",
		Args:  cobra.ExactArgs(1),
		Run:   run,
	}
	cmd.Flags().StringVar(&password, "password", "", "Password to hash. A random one is generated when omitted.")
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	username := args[0]
	if password == "" {
		password = passwords.Generate()
	}
	fmt.Printf("username: %s\n", username)
	fmt.Printf("password: %s\n", password)
	fmt.Printf("md5hash:  %s\n", passwords.MD5Hash(username, password))
}
