package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 3, "Importing files...")
	p.Step()
	p.Step()
	p.Finish()

	assert.Contains(t, buf.String(), "Importing files...")
	assert.Contains(t, buf.String(), "3/3")
}
