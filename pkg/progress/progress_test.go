package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type call struct {
	op      string
	current int
	total   int
	message string
}

func TestNew_DefaultsToNoop(t *testing.T) {
	p := New("deploy", 3, nil)
	assert.NotNil(t, p.cb)
	p.Increment("export")
	assert.Equal(t, 1, p.Current())
}

func TestIncrementAndDone(t *testing.T) {
	var calls []call
	p := New("deploy live", 3, func(op string, current, total int, message string) {
		calls = append(calls, call{op, current, total, message})
	})

	p.Increment("export")
	p.Increment("pre commands")
	p.Done("synced")

	assert.Equal(t, []call{
		{"deploy live", 1, 3, "export"},
		{"deploy live", 2, 3, "pre commands"},
		{"deploy live", 3, 3, "synced"},
	}, calls)
}

func TestIncrement_Clamped(t *testing.T) {
	p := New("x", 1, nil)
	p.Increment("")
	p.Increment("")
	assert.Equal(t, 1, p.Current())
}

func TestTerminal_Render(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)
	cb := term.Callback()

	cb("deploy", 1, 4, "export")
	assert.Equal(t, "\rdeploy [=====               ] 1/4 export", buf.String())

	buf.Reset()
	cb("deploy", 4, 4, "done")
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r"+strings.Repeat(" ", len("deploy [=====               ] 1/4 export"))+"\r"))
	assert.True(t, strings.HasSuffix(out, "deploy [====================] 4/4 done\n"))
}

func TestTerminal_Disabled(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, false)
	term.Callback()("deploy", 1, 2, "x")
	assert.Zero(t, buf.Len())

	term.SetEnabled(true)
	term.Callback()("deploy", 1, 2, "x")
	assert.NotZero(t, buf.Len())
}

func TestTerminal_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	NewTerminal(&buf, true).Callback()("scan", 0, 0, "")
	assert.Equal(t, "\rscan [                    ] 0/1", buf.String())
}
