/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bazaar",
	Short: "Marketplace backend: listings, offers and direct messages",
	Long: `bazaar runs the marketplace API server, applies database
migrations and ships a small interactive chat client.

	bazaar server
	bazaar migrate up
	bazaar chat --with <profile id>
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
