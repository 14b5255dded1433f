package todo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/todo-shm/pkg/shm"
)

func TestRender(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Render(&out, []shm.Record{
		{Index: 0, Description: "Design webpage"},
		{Index: 1, Description: "Do backend", Completed: true},
		{Index: 2, Description: "Deploy website"},
	}))
	assert.Equal(t, "To-Do List:\n"+
		"1. Design webpage [Pending]\n"+
		"2. Do backend [Completed]\n"+
		"3. Deploy website [Pending]\n", out.String())
}

func TestRenderEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Render(&out, nil))
	assert.Equal(t, "To-Do List:\n", out.String())
}
