package app

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"bioswatch/internal/checker"
)

// HandleLambda is the AWS Lambda entry point. The event payload is ignored;
// the invocation's request id tags the run.
func (a *App) HandleLambda(ctx context.Context, _ json.RawMessage) (checker.Result, error) {
	var reqID string
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		reqID = lc.AwsRequestID
	}
	return a.Check(ctx, reqID)
}
