package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "remember [text]",
		Aliases: []string{"put"},
		Short:   "Extract insights from text and store them",
		Long:    "Extract insights from text and store them. Text can be a positional arg or piped via stdin. Requires ANTHROPIC_API_KEY.",
		Run:     runRemember,
	}
	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}
	if strings.TrimSpace(text) == "" {
		exitErr("remember", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	m, err := openManager()
	if err != nil {
		exitErr("open", err)
	}
	defer m.Close()

	rec, created, err := m.ExtractAndStore(cmd.Context(), text)
	if err != nil {
		exitErr("remember", err)
	}

	b, _ := json.Marshal(map[string]any{
		"key":      rec.Key,
		"insights": rec.Insights,
		"created":  created,
	})
	fmt.Println(string(b))
}
