package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at release time via -ldflags
var version = "0.1.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the beluga version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalOpts.JSON {
				return printJSON(map[string]string{"version": version})
			}
			fmt.Println("beluga " + version)
			return nil
		},
	}
}
