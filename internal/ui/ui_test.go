package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errb bytes.Buffer
	prevOut, prevErr := Out, Err
	Out, Err = &out, &errb
	t.Cleanup(func() {
		Out, Err = prevOut, prevErr
		SetColorForcing(false, false)
		SetTheme("classic")
	})
	return &out, &errb
}

func TestC_NoColorWhenNotTTY(t *testing.T) {
	capture(t)
	assert.Equal(t, "x", C(fgRed, "x"))

	SetColorForcing(true, false)
	assert.Equal(t, fgRed+"x"+reset, C(fgRed, "x"))

	SetColorForcing(true, true)
	assert.Equal(t, "x", C(fgRed, "x"))
}

func TestMessages(t *testing.T) {
	out, errb := capture(t)

	OK("added")
	Warn("careful")
	Fail("add: boom")

	assert.Equal(t, "✔ added\n", out.String())
	assert.Equal(t, "! careful\n✖ add: boom\n", errb.String())
}

func TestSetTheme(t *testing.T) {
	capture(t)

	assert.True(t, SetTheme("Neon"))
	assert.Equal(t, "neon", Current().Name)

	assert.False(t, SetTheme("vapor"))
	assert.Equal(t, "classic", Current().Name)

	SetTheme("mono")
	assert.Equal(t, "[x]", Box(true))
	assert.Equal(t, "[ ]", Box(false))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░  50%", ProgressBar(1, 2, 10))
	assert.Equal(t, "░░░░░   0%", ProgressBar(0, 0, 1))
	assert.Equal(t, "██████████ 100%", ProgressBar(3, 3, 10))
}

func TestFilterTabs(t *testing.T) {
	capture(t)
	assert.Equal(t, "all [active] completed", FilterTabs([]string{"all", "active", "completed"}, 1))
}

func TestPanel(t *testing.T) {
	out, _ := capture(t)
	SetTheme("mono")

	Panel([]string{"todos", "1. ☐ milk"})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "+-----------+", lines[0])
	assert.Equal(t, "| todos     |", lines[1])
	assert.Equal(t, "| 1. ☐ milk |", lines[2])
	assert.Equal(t, "+-----------+", lines[3])
}
