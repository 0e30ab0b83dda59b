package cmd

import (
	"github.com/spf13/cobra"

	"github.com/privscope/privscope/internal/server"
	"github.com/privscope/privscope/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only JSON API and status page over the database",
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		user, _ := cmd.Flags().GetString("auth-user")
		pass, _ := cmd.Flags().GetString("auth-pass")

		db, cleanup, err := openDB()
		if err != nil {
			utils.Log.Fatal(err)
		}
		defer cleanup()

		srv := server.New(db, user, pass)
		if err := srv.Start(addr); err != nil {
			utils.Log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "127.0.0.1:8391", "Listen address")
	serveCmd.Flags().String("auth-user", "", "Basic auth username (empty disables auth)")
	serveCmd.Flags().String("auth-pass", "", "Basic auth password")
}
