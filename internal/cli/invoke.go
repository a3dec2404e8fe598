package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var (
	invokeFunctionID string
	invokeInput      string
)

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Invoke a function directly, bypassing the gateway",
	Run: func(cmd *cobra.Command, args []string) {
		var event any
		if invokeInput != "" {
			if err := json.Unmarshal([]byte(invokeInput), &event); err != nil {
				fmt.Printf("invalid --input JSON: %v\n", err)
				os.Exit(1)
			}
		}

		body, _ := json.Marshal(map[string]any{"event": event})
		url := fmt.Sprintf("%s/api/functions/%s/invoke", serverAddr, invokeFunctionID)

		resp, err := http.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("failed to reach control plane at %s: %v\n", serverAddr, err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var result map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			fmt.Printf("bad response: %v\n", err)
			os.Exit(1)
		}

		pretty, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(pretty))

		if success, _ := result["success"].(bool); !success {
			os.Exit(1)
		}
	},
}

func init() {
	invokeCmd.Flags().StringVar(&invokeFunctionID, "function", "", "function id to invoke")
	invokeCmd.Flags().StringVar(&invokeInput, "input", "", "JSON event to pass to the function")
	invokeCmd.MarkFlagRequired("function")
	RootCmd.AddCommand(invokeCmd)
}
