package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"bioswatch/internal/app"
)

func lambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve the AWS Lambda handler",
		Long: `Start the AWS Lambda runtime loop. Each invocation runs one check and
returns {req_id, expected_version, latest_version, notification_sent}.
An invocation fails when every notifier failed.`,
		RunE: runLambda,
	}
}

func runLambda(cmd *cobra.Command, args []string) error {
	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	lambda.Start(a.HandleLambda)
	return nil
}
