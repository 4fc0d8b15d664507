package cmd

import (
	"fmt"
	"log"
	"os"

	"Praetorius/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "praetorius",
	Short: "Praetorius is a composer portfolio works console.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting Praetorius server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
