package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens"},
	Short:   "List the tokens the agent can swap and price",
	Long: `Print the address book used to ground swap and price extraction.

The built-in Starknet mainnet table is used unless exchange.address_book
points at a YAML file.`,
	Args: cobra.NoArgs,
	RunE: runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

func runTokens(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	book, err := loadAddressBook(cfg)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(book.Entries())
	}
	color.New(color.FgCyan, color.Bold).Printf("\nKnown tokens (%d)\n\n", len(book.Entries()))
	fmt.Println(book.Render())
	return nil
}
