package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group all stored memories into topic clusters",
		Run:   runCluster,
	}
	RootCmd.AddCommand(cmd)
}

func runCluster(cmd *cobra.Command, args []string) {
	m, err := openManager()
	if err != nil {
		exitErr("open", err)
	}
	defer m.Close()

	result, err := m.ClusterAll(cmd.Context())
	if err != nil {
		exitErr("cluster", err)
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}
