package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Rotate an instance's memory API credential",
		Run:   runRotateKey,
	}

	RootCmd.AddCommand(cmd)
}

func runRotateKey(cmd *cobra.Command, args []string) {
	rt, err := openRuntime()
	if err != nil {
		exitErr("open", err)
	}
	defer rt.close()

	key, err := rt.service.RotateAPIKey(cmd.Context(), requireInstance())
	if err != nil {
		exitErr("rotate-key", err)
	}
	fmt.Println(key)
}
