package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/nexus/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search events, entities, decisions, and documents",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	rt, err := openRuntime()
	if err != nil {
		exitErr("open", err)
	}
	defer rt.close()

	instanceID := requireInstance()
	query := strings.Join(args, " ")

	result, err := rt.service.Search(cmd.Context(), instanceID, query, memory.SearchOptions{})
	if err != nil {
		exitErr("search", err)
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}
