package extraction_test

import (
	"testing"

	"github.com/gowatsonx/watsonx/extraction"
	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	t.Parallel()
	source := []byte(`# Quarterly Report

Revenue grew by **12%** over [last quarter](https://example.com/q1).

- staffing
- *logistics*

` + "```\ntotal = 42\n```")

	got := extraction.PlainText(source)

	assert.Equal(t, "Quarterly Report\nRevenue grew by 12% over last quarter.\nstaffing\nlogistics\ntotal = 42", got)
}

func TestPlainText_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", extraction.PlainText(nil))
}

func TestPlainText_SoftBreaks(t *testing.T) {
	t.Parallel()
	got := extraction.PlainText([]byte("line one\nline two"))
	assert.Equal(t, "line one\nline two", got)
}
