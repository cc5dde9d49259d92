package main

import (
	"github.com/spf13/cobra"

	"github.com/netlab-dev/azure-topology/pkg/config"
)

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the built-in topology tables as YAML",
	Long: `Print the built-in topology tables in the --file format. The output is a
starting point for a custom topology file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Marshal(config.Default())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
