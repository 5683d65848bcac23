package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rm := &cobra.Command{
		Use:   "rm <key>",
		Short: "Delete one memory by key",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}
	RootCmd.AddCommand(rm)

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete all memories",
		Run:   runClear,
	}
	clear.Flags().Bool("yes", false, "Skip confirmation")
	RootCmd.AddCommand(clear)
}

func runRm(cmd *cobra.Command, args []string) {
	m, err := openManager()
	if err != nil {
		exitErr("open", err)
	}
	defer m.Close()

	removed, err := m.Delete(cmd.Context(), args[0])
	if err != nil {
		exitErr("rm", err)
	}
	if !removed {
		exitErr("rm", fmt.Errorf("no memory under key %q", args[0]))
	}
	fmt.Println("deleted")
}

func runClear(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		exitErr("clear", fmt.Errorf("refusing to delete all memories without --yes"))
	}

	m, err := openManager()
	if err != nil {
		exitErr("open", err)
	}
	defer m.Close()

	if err := m.Clear(cmd.Context()); err != nil {
		exitErr("clear", err)
	}
	fmt.Println("cleared")
}
