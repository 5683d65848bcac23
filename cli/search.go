package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find memories similar to a query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}
	cmd.Flags().IntP("top", "k", 0, "Maximum results (default: engine default)")
	cmd.Flags().Float64P("min-score", "m", 0, "Similarity floor (default: engine default)")
	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	topK, _ := cmd.Flags().GetInt("top")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	query := strings.Join(args, " ")

	m, err := openManager()
	if err != nil {
		exitErr("open", err)
	}
	defer m.Close()

	matches, err := m.Search(cmd.Context(), query, topK, minScore)
	if err != nil {
		exitErr("search", err)
	}

	out := make([]map[string]any, 0, len(matches))
	for _, match := range matches {
		out = append(out, map[string]any{
			"key":      match.Record.Key,
			"insights": match.Record.Insights,
			"score":    match.Score,
		})
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}
