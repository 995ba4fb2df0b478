package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_Suite(t *testing.T) {
	line := `{"type":"suite","suite":{"id":0,"platform":"vm","path":"test/app_test.dart"},"time":3}`

	event, err := ParseEvent([]byte(line))
	require.NoError(t, err)

	suite, ok := event.(*SuiteEvent)
	require.True(t, ok, "expected *SuiteEvent, got %T", event)
	assert.Equal(t, EventSuite, suite.Kind())
	assert.Equal(t, 0, suite.Suite.ID)
	assert.Equal(t, "vm", suite.Suite.Platform)
	assert.Equal(t, "test/app_test.dart", suite.Suite.Path)
}

func TestParseEvent_Group(t *testing.T) {
	line := `{"type":"group","group":{"id":2,"suiteID":0,"parentID":null,"name":"login","metadata":{"skip":false,"skipReason":null},"testCount":3,"line":10,"column":5,"url":"file:///app/test/app_test.dart"},"time":9}`

	event, err := ParseEvent([]byte(line))
	require.NoError(t, err)

	group, ok := event.(*GroupEvent)
	require.True(t, ok, "expected *GroupEvent, got %T", event)
	assert.Equal(t, 2, group.Group.ID)
	assert.Equal(t, 0, group.Group.SuiteID)
	assert.Nil(t, group.Group.ParentID)
	assert.Equal(t, "login", group.Group.Name)
	assert.False(t, group.Group.Metadata.Skip)
	assert.Nil(t, group.Group.Metadata.SkipReason)
	assert.Equal(t, 3, group.Group.TestCount)
	require.NotNil(t, group.Group.Line)
	assert.Equal(t, 10, *group.Group.Line)
}

func TestParseEvent_TestStartWithRootLocation(t *testing.T) {
	line := `{"type":"testStart","test":{"id":3,"name":"login succeeds","suiteID":0,"groupIDs":[2],"metadata":{"skip":false,"skipReason":null},"line":4,"column":7,"url":"file:///app/test/wrapper.dart","root_line":22,"root_column":9,"root_url":"file:///app/test/app_test.dart"},"time":12}`

	event, err := ParseEvent([]byte(line))
	require.NoError(t, err)

	start, ok := event.(*TestStartEvent)
	require.True(t, ok, "expected *TestStartEvent, got %T", event)
	assert.Equal(t, 3, start.Test.ID)
	assert.Equal(t, "login succeeds", start.Test.Name)
	require.NotNil(t, start.Test.SuiteID)
	assert.Equal(t, 0, *start.Test.SuiteID)
	assert.Equal(t, []int{2}, start.Test.GroupIDs)
	require.NotNil(t, start.Test.RootLine)
	assert.Equal(t, 22, *start.Test.RootLine)
	require.NotNil(t, start.Test.RootURL)
	assert.Equal(t, "file:///app/test/app_test.dart", *start.Test.RootURL)
}

func TestParseEvent_AllKinds(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "start",
			line: `{"type":"start","protocolVersion":"0.1.1","runnerVersion":"1.24.0","pid":4321,"time":0}`,
			want: EventStart,
		},
		{
			name: "allSuites",
			line: `{"type":"allSuites","count":2,"time":1}`,
			want: EventAllSuites,
		},
		{
			name: "print",
			line: `{"type":"print","testID":3,"messageType":"print","message":"hello","time":20}`,
			want: EventPrint,
		},
		{
			name: "error",
			line: `{"type":"error","testID":3,"error":"Expected: true","stackTrace":"main.dart 10:1","isFailure":true,"time":25}`,
			want: EventError,
		},
		{
			name: "testDone",
			line: `{"type":"testDone","testID":3,"result":"success","skipped":false,"hidden":false,"time":30}`,
			want: EventTestDone,
		},
		{
			name: "done",
			line: `{"type":"done","success":true,"time":1500}`,
			want: EventDone,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tc.line))
			require.NoError(t, err)
			assert.Equal(t, tc.want, event.Kind())
		})
	}
}

func TestParseEvent_UnknownKindIsIgnored(t *testing.T) {
	line := `{"type":"debug","testID":3,"message":"observatory listening"}`

	event, err := ParseEvent([]byte(line))
	require.NoError(t, err)

	ignored, ok := event.(*IgnoredEvent)
	require.True(t, ok, "expected *IgnoredEvent, got %T", event)
	assert.Equal(t, "debug", ignored.Type)
}

func TestParseEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "not JSON", line: `Observatory listening on http://127.0.0.1:8181/`},
		{name: "truncated JSON", line: `{"type":"testDone","testID":`},
		{name: "missing discriminant", line: `{"testID":3,"result":"success"}`},
		{name: "non-string discriminant", line: `{"type":42}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tc.line))
			require.Error(t, err)
			assert.Nil(t, event)

			var malformed *MalformedEventError
			assert.True(t, errors.As(err, &malformed), "expected MalformedEventError, got %T", err)
		})
	}
}

func TestParseEvent_DoneWithoutSuccess(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"done","time":100}`))
	require.NoError(t, err)

	done, ok := event.(*DoneEvent)
	require.True(t, ok)
	assert.Nil(t, done.Success)
	assert.Equal(t, int64(100), done.Time)
}
