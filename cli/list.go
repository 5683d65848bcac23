package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all stored memories",
		Run:   runList,
	}
	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	m, err := openManager()
	if err != nil {
		exitErr("open", err)
	}
	defer m.Close()

	records, err := m.List(cmd.Context())
	if err != nil {
		exitErr("list", err)
	}

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"key":        rec.Key,
			"insights":   rec.Insights,
			"embedded":   rec.HasEmbedding(),
			"created_at": rec.CreatedAt.Format(time.RFC3339),
		})
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}
