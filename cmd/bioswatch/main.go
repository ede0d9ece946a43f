// bioswatch checks the vendor site for a newer BIOS release and notifies by
// email, Discord and (optionally) Telegram.
//
// Usage:
//
//	bioswatch check -c config.yaml
//	bioswatch watch -c config.yaml --schedule "@every 6h"
//	bioswatch lambda
//
// Inside AWS Lambda (AWS_LAMBDA_RUNTIME_API set) the bare binary runs the
// lambda handler.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bioswatch/internal/config"
)

var (
	version   = "dev"
	cfgPath   string
	outputFmt string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bioswatch",
		Short: "Notify when a newer BIOS version is published",
		Long: `bioswatch compares the latest firmware version published by the vendor
with the expected one and notifies every configured backend when a newer
version appears.

Configuration comes from an optional YAML/JSON file overlaid with
environment variables (LATEST_VER, SMTP_EMAIL, DISCORD_AUTH_TOKEN, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.InLambda() {
				return runLambda(cmd, args)
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file (YAML or JSON); empty means environment only")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "json", "Result format: json, yaml")

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(lambdaCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
