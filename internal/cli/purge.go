package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete events whose retention window has passed",
		Run:   runPurge,
	}

	RootCmd.AddCommand(cmd)
}

func runPurge(cmd *cobra.Command, args []string) {
	rt, err := openRuntime()
	if err != nil {
		exitErr("open", err)
	}
	defer rt.close()

	purged, err := rt.store.PurgeExpired(cmd.Context())
	if err != nil {
		exitErr("purge", err)
	}
	fmt.Printf("purged %d expired events\n", purged)
}
