package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/nexus/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Rebuild the memory digest injected into agent prompts",
		Run:   runDigest,
	}

	RootCmd.AddCommand(cmd)
}

func runDigest(cmd *cobra.Command, args []string) {
	rt, err := openRuntime()
	if err != nil {
		exitErr("open", err)
	}
	defer rt.close()

	if instanceFlag != "" {
		digest := rt.service.BuildDigest(cmd.Context(), instanceFlag)
		if digest == "" {
			fmt.Println("no memory to digest")
			return
		}
		fmt.Println(digest)
		return
	}

	memory.NewBatch(rt.service, nil).DigestAll(cmd.Context())
}
