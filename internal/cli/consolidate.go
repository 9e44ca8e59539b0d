package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/nexus/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Fold aged events into sender profiles and purge expired rows",
		Run:   runConsolidate,
	}

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	rt, err := openRuntime()
	if err != nil {
		exitErr("open", err)
	}
	defer rt.close()

	if instanceFlag != "" {
		result, err := memory.NewConsolidator(rt.service).Consolidate(cmd.Context(), instanceFlag)
		if err != nil {
			exitErr("consolidate", err)
		}
		fmt.Printf("%s: %d consolidated, %d profiles updated, %d expired\n",
			instanceFlag, result.Consolidated, result.EntitiesUpdated, result.Expired)
		return
	}

	memory.NewBatch(rt.service, nil).ConsolidateAll(cmd.Context())
}
