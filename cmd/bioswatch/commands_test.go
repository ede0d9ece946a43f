package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioswatch/internal/checker"
)

func TestPrintResult(t *testing.T) {
	res := checker.Result{RequestID: "abc", ExpectedVersion: 100, LatestVersion: 105, NotificationSent: true}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, res, "json"))
	assert.JSONEq(t, `{"req_id":"abc","expected_version":100,"latest_version":105,"notification_sent":true}`, buf.String())

	buf.Reset()
	require.NoError(t, printResult(&buf, res, "yaml"))
	assert.Equal(t, "req_id: abc\nexpected_version: 100\nlatest_version: 105\nnotification_sent: true\n", buf.String())

	assert.Error(t, printResult(&buf, res, "table"))
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"check", "watch", "lambda", "version"} {
		assert.Contains(t, names, want)
	}

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestCheckCommandConfigError(t *testing.T) {
	t.Setenv("LATEST_VER", "")
	t.Setenv("SMTP_PORT", "not-a-port")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check"})
	err := root.Execute()
	require.Error(t, err)
	assert.Empty(t, out.String())
}
