package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"bioswatch/internal/app"
	"bioswatch/internal/checker"
)

var requestID string

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single check and print the result",
		Long: `Fetch the latest version once, notify if it is newer than the expected
one, and print the result. Logs go to stderr.

The command exits non-zero when the check fails, including when every
notifier failed to deliver.

Examples:
  LATEST_VER=4602 bioswatch check
  bioswatch check -c config.yaml -o yaml --request-id manual-1`,
		RunE: runCheck,
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "Request id attached to logs and the result (default: random)")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := app.New(cfgPath, app.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	res, checkErr := a.Check(cmd.Context(), requestID)
	// a failed delivery still reports what was compared
	if checkErr == nil || res.NotificationSent {
		if err := printResult(cmd.OutOrStdout(), res, outputFmt); err != nil {
			return err
		}
	}
	return checkErr
}

func printResult(w io.Writer, res checker.Result, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
