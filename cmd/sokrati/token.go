package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vlad-lazar/sokrati/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for local development",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer, err := auth.NewIssuer(authConfig())
		if err != nil {
			return err
		}
		token, err := issuer.Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
