package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/nexus/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Mine transcript logs into events, entities, and decisions",
		Run:   runMine,
	}

	RootCmd.AddCommand(cmd)
}

func runMine(cmd *cobra.Command, args []string) {
	rt, err := openRuntime()
	if err != nil {
		exitErr("open", err)
	}
	defer rt.close()

	if instanceFlag != "" {
		result, err := rt.miner.Mine(cmd.Context(), instanceFlag)
		if err != nil {
			exitErr("mine", err)
		}
		fmt.Printf("mined %s: %d events, %d entities\n", instanceFlag, result.EventsExtracted, result.EntitiesFound)
		return
	}

	memory.NewBatch(rt.service, rt.miner).MineAll(cmd.Context())
}
