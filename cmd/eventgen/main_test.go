package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"events": 3}))
	assert.Equal(t, "{\n  \"events\": 3\n}\n", buf.String())
}

func TestPrintJSONReportsWriteFailure(t *testing.T) {
	err := printJSON(failingWriter{}, map[string]int{"events": 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}
