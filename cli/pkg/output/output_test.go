package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestJSON(t *testing.T) {
	out := captureStdout(func() {
		err := JSON(map[string]int{"total": 3})
		require.NoError(t, err)
	})

	var got map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got["total"])
}

func TestTableRender(t *testing.T) {
	out := captureStdout(func() {
		table := NewTable([]string{"BATCH ID", "TOTAL"})
		table.AddRow([]string{"batch-1", "10"})
		table.AddRow([]string{"a-much-longer-batch-id", "7"})
		table.Render()
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "BATCH ID")
	assert.Contains(t, lines[1], "---")
	assert.Contains(t, lines[2], "batch-1")
	assert.Contains(t, lines[3], "a-much-longer-batch-id")

	// Columns align on the widest cell.
	assert.True(t, strings.Index(lines[2], "10") > len("a-much-longer-batch-id"))
}
