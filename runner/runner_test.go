package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dartlab/dart-triage/logging"
	"github.com/dartlab/dart-triage/tree"
)

const passingStream = `{"type":"start","protocolVersion":"0.1.1","runnerVersion":"1.24.0","pid":100,"time":0}
{"type":"suite","suite":{"id":1,"platform":"vm","path":"a_test.dart"},"time":1}
{"type":"testStart","test":{"id":10,"name":"t1","suiteID":1,"groupIDs":[],"metadata":{"skip":false,"skipReason":null}},"time":2}
{"type":"testDone","testID":10,"result":"success","skipped":false,"hidden":false,"time":900}
{"type":"done","success":true,"time":1500}
`

const failingStream = `{"type":"suite","suite":{"id":1,"platform":"vm","path":"a_test.dart"},"time":1}
{"type":"testStart","test":{"id":11,"name":"t2","suiteID":1,"groupIDs":[],"metadata":{"skip":false,"skipReason":null}},"time":2}
{"type":"error","testID":11,"error":"Expected true","stackTrace":"a_test.dart 5:3","isFailure":true,"time":3}
{"type":"testDone","testID":11,"result":"failure","skipped":false,"hidden":false,"time":4}
{"type":"done","success":false,"time":800}
`

const skippedStream = `{"type":"suite","suite":{"id":1,"platform":"vm","path":"a_test.dart"},"time":1}
{"type":"testStart","test":{"id":12,"name":"t3","suiteID":1,"groupIDs":[],"metadata":{"skip":true,"skipReason":"flaky"}},"time":2}
{"type":"testDone","testID":12,"result":"success","skipped":true,"hidden":false,"time":3}
{"type":"done","success":true,"time":400}
`

// writeRunnerScript creates a stand-in test runner that writes the given
// stream to the --file-reporter sink. A package directory named "bad" exits
// without producing output.
func writeRunnerScript(t *testing.T, stream string) string {
	t.Helper()
	dir := t.TempDir()

	fixture := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(fixture, []byte(stream), 0o644))

	script := filepath.Join(dir, "fake-dart-test.sh")
	content := fmt.Sprintf(`#!/bin/sh
case "$(basename "$PWD")" in
  bad) exit 3 ;;
esac
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--file-reporter" ]; then
    shift
    out="${1#json:}"
  fi
  shift
done
[ -n "$out" ] || exit 3
cat %q > "$out"
exit 1
`, fixture)
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))
	return script
}

func TestNewTestRunner_Validation(t *testing.T) {
	_, err := NewTestRunner(Config{Concurrency: -1})
	assert.Error(t, err)

	_, err = NewTestRunner(Config{Command: `unbalanced "quote`})
	assert.Error(t, err)

	r, err := NewTestRunner(Config{})
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "default dart test",
			cfg:  Config{},
			want: []string{"dart", "test", "--reporter", "json", "--file-reporter", "json:/tmp/sink.jsonl"},
		},
		{
			name: "custom binary",
			cfg:  Config{DartBinary: "/opt/dart-sdk/bin/dart"},
			want: []string{"/opt/dart-sdk/bin/dart", "test", "--reporter", "json", "--file-reporter", "json:/tmp/sink.jsonl"},
		},
		{
			name: "command override with shell quoting",
			cfg:  Config{Command: `fvm dart test --tags "integration slow"`},
			want: []string{"fvm", "dart", "test", "--tags", "integration slow", "--reporter", "json", "--file-reporter", "json:/tmp/sink.jsonl"},
		},
		{
			name: "concurrency appended",
			cfg:  Config{Concurrency: 4},
			want: []string{"dart", "test", "--reporter", "json", "--file-reporter", "json:/tmp/sink.jsonl", "--concurrency", "4"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewTestRunner(tc.cfg)
			require.NoError(t, err)

			argv, err := r.(*packageRunner).buildArgs("/tmp/sink.jsonl")
			require.NoError(t, err)
			assert.Equal(t, tc.want, argv)
		})
	}
}

func TestRunPackage_PassingRun(t *testing.T) {
	script := writeRunnerScript(t, passingStream)
	r, err := NewTestRunner(Config{Command: script})
	require.NoError(t, err)

	result, err := r.RunPackage(context.Background(), t.TempDir())
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 1)
	assert.Equal(t, "t1", result.Succeeded[0].Name)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, 1500*time.Millisecond, result.Duration)
}

func TestRunPackage_FailingRun(t *testing.T) {
	script := writeRunnerScript(t, failingStream)
	r, err := NewTestRunner(Config{Command: script})
	require.NoError(t, err)

	result, err := r.RunPackage(context.Background(), t.TempDir())
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	failed := result.Failed[0]
	assert.Equal(t, "t2", failed.Name)
	require.Len(t, failed.Errors, 1)
	assert.Equal(t, "Expected true", failed.Errors[0].Message)
	assert.Equal(t, "a_test.dart 5:3", failed.Errors[0].StackTrace)
}

func TestRunPackage_SkippedRun(t *testing.T) {
	script := writeRunnerScript(t, skippedStream)
	r, err := NewTestRunner(Config{Command: script})
	require.NoError(t, err)

	result, err := r.RunPackage(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, result.Failed)
	require.Len(t, result.Skipped, 1)
	skipped := result.Skipped[0]
	assert.Equal(t, "t3", skipped.Name)
	require.NotNil(t, skipped.Metadata.SkipReason)
	assert.Equal(t, "flaky", *skipped.Metadata.SkipReason)
}

func TestRunPackage_MissingOutput(t *testing.T) {
	script := writeRunnerScript(t, passingStream)
	r, err := NewTestRunner(Config{Command: script})
	require.NoError(t, err)

	pkg := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.Mkdir(pkg, 0o755))

	result, err := r.RunPackage(context.Background(), pkg)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsMissingOutputError(err))

	var missing *MissingOutputError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, 3, missing.ExitCode)
}

func TestRunPackage_MalformedStreamIsFatal(t *testing.T) {
	script := writeRunnerScript(t, "this is not json\n")
	r, err := NewTestRunner(Config{Command: script})
	require.NoError(t, err)

	result, err := r.RunPackage(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "malformed test event")
}

func TestRunPackage_MalformedStreamStillArchived(t *testing.T) {
	fileLogger, err := logging.NewFileLogger(t.TempDir(), "run-1")
	require.NoError(t, err)

	script := writeRunnerScript(t, "this is not json\n")
	r, err := NewTestRunner(Config{Command: script, FileLogger: fileLogger})
	require.NoError(t, err)

	pkg := t.TempDir()
	_, err = r.RunPackage(context.Background(), pkg)
	require.Error(t, err)

	// The raw stream is exactly what a re-triage needs when parsing aborts.
	data, err := os.ReadFile(fileLogger.RawEventsFile(pkg))
	require.NoError(t, err)
	assert.Equal(t, "this is not json\n", string(data))
}

func TestRunPackage_ArchivesRawEvents(t *testing.T) {
	logDir := t.TempDir()
	fileLogger, err := logging.NewFileLogger(logDir, "run-1")
	require.NoError(t, err)

	script := writeRunnerScript(t, passingStream)
	r, err := NewTestRunner(Config{Command: script, FileLogger: fileLogger})
	require.NoError(t, err)

	pkg := t.TempDir()
	_, err = r.RunPackage(context.Background(), pkg)
	require.NoError(t, err)

	data, err := os.ReadFile(fileLogger.RawEventsFile(pkg))
	require.NoError(t, err)
	assert.Equal(t, passingStream, string(data))
}

func TestRunAll_MergesPackages(t *testing.T) {
	script := writeRunnerScript(t, passingStream)
	r, err := NewTestRunner(Config{Command: script})
	require.NoError(t, err)

	dirs := []string{t.TempDir(), t.TempDir()}
	result, err := r.RunAll(context.Background(), dirs)
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 2)
	assert.Equal(t, 3*time.Second, result.Duration)
}

func TestRunAll_PartialFailureContributesEmpty(t *testing.T) {
	script := writeRunnerScript(t, passingStream)
	r, err := NewTestRunner(Config{Command: script})
	require.NoError(t, err)

	bad := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.Mkdir(bad, 0o755))

	result, err := r.RunAll(context.Background(), []string{t.TempDir(), bad})
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 1)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 1500*time.Millisecond, result.Duration)
}

func TestRunAll_AllFailuresFatal(t *testing.T) {
	script := writeRunnerScript(t, passingStream)
	r, err := NewTestRunner(Config{Command: script})
	require.NoError(t, err)

	bad := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.Mkdir(bad, 0o755))

	result, err := r.RunAll(context.Background(), []string{bad})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsMissingOutputError(err))
}

func TestRunAll_ZeroPackages(t *testing.T) {
	r, err := NewTestRunner(Config{})
	require.NoError(t, err)

	result, err := r.RunAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total())
	assert.Equal(t, tree.UnknownDuration, result.Duration)
}
