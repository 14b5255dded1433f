package todo

import (
	"io"
	"strconv"

	"github.com/valyala/bytebufferpool"

	"github.com/srediag/todo-shm/pkg/shm"
)

// Render prints records the way the interactive commands show them, numbering
// items from 1:
//
//	To-Do List:
//	1. Design webpage [Pending]
//	2. Do backend [Completed]
func Render(w io.Writer, records []shm.Record) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("To-Do List:\n")
	for _, r := range records {
		buf.B = strconv.AppendInt(buf.B, int64(r.Index+1), 10)
		_, _ = buf.WriteString(". ")
		_, _ = buf.WriteString(r.Description)
		if r.Completed {
			_, _ = buf.WriteString(" [Completed]\n")
		} else {
			_, _ = buf.WriteString(" [Pending]\n")
		}
	}
	_, err := buf.WriteTo(w)
	return err
}
