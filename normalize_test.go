package edgar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"named entities", "Revenue &amp; Growth&nbsp;&mdash;&nbsp;FY2023", "Revenue & Growth — FY2023"},
		{"decimal entity", "Item&#160;1A", "Item 1A"},
		{"hex entity", "&#x2019;s annual report", "’s annual report"},
		{"bad entity left alone", "see &#99999999; note", "see &#99999999; note"},
		{"nbsp rune", "Net\u00a0sales", "Net sales"},
		{"thin spaces", "383\u2009285", "383 285"},
		{"zero width dropped", "10\u200b-K\ufeff", "10-K"},
		{"crlf", "line one\r\nline two\r", "line one\nline two\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(NormalizeText([]byte(tt.in))))
		})
	}
}

func TestCleanExtractedText(t *testing.T) {
	assert.Equal(t, "Total net sales 383,285",
		CleanExtractedText("  Total net\n\tsales   383,285 "))
	assert.Equal(t, "Risk Factors",
		CleanExtractedText("Risk Factors Page 14 of 120"))
}
