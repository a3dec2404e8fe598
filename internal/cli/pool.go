package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect the warm sandbox pool",
}

var poolStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print current pool occupancy",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverAddr + "/api/pool/stats")
		if err != nil {
			fmt.Printf("failed to reach control plane at %s: %v\n", serverAddr, err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var stats map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			fmt.Printf("bad response: %v\n", err)
			os.Exit(1)
		}

		pretty, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(pretty))
	},
}

func init() {
	poolCmd.AddCommand(poolStatsCmd)
	RootCmd.AddCommand(poolCmd)
}
