package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer

	PrintReport(&buf, "Sweep", []Field{
		{Label: "Pending signups", Value: "3"},
		{Label: "Reset codes", Value: "0"},
	})

	out := buf.String()
	assert.Contains(t, out, "Sweep")
	assert.Contains(t, out, "Pending signups")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "Reset codes")
}

func TestPrintSuccessAndError(t *testing.T) {
	var buf bytes.Buffer

	PrintSuccess(&buf, "done")
	PrintError(&buf, "boom")

	assert.Contains(t, buf.String(), "done")
	assert.Contains(t, buf.String(), "Error: boom")
}
