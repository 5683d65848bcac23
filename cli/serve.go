package cli

import (
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/engramlabs/engram-go/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory API over HTTP and WebSocket",
		Run:   runServe,
	}
	cmd.Flags().String("addr", ":8170", "Listen address")
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")

	m, err := openManager()
	if err != nil {
		exitErr("open", err)
	}
	defer m.Close()

	srv := server.New(m)
	log.Printf("[CLI] Serving memory API on %s", addr)
	if err := http.ListenAndServe(addr, srv); err != nil {
		exitErr("serve", err)
	}
}
