package misc

import (
	"github.com/stretchr/testify/assert"
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		expected string
	}{
		{name: "plain", args: "Thesis", expected: "Thesis"},
		{name: "spaces and punctuation", args: "Deep Learning: A Survey!", expected: "Deep-Learning-A-Survey"},
		{name: "repeated separators", args: "a  --  b__c", expected: "a-b-c"},
		{name: "leading and trailing separators", args: "  ..report..  ", expected: "report"},
		{name: "path traversal", args: "../../etc/passwd", expected: "etc-passwd"},
		{name: "empty", args: "", expected: "untitled"},
		{name: "only symbols", args: "!!!???", expected: "untitled"},
		{name: "unicode letters", args: "Études über Öko", expected: "Études-über-Öko"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, SanitizeName(test.args))
		})
	}
}

func TestSanitizeName_CapsLength(t *testing.T) {
	got := SanitizeName(strings.Repeat("word ", 30))
	assert.LessOrEqual(t, len(got), 50)
	assert.False(t, strings.HasSuffix(got, "-"))
	assert.True(t, strings.HasPrefix(got, "word-word"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".pdf", Extension("paper.PDF", ".bin"))
	assert.Equal(t, ".bin", Extension("paper", ".bin"))
	assert.Equal(t, ".gz", Extension("data.tar.gz", ".bin"))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("02:30")
	assert.NoError(t, err)
	assert.Equal(t, 2, h)
	assert.Equal(t, 30, m)

	for _, bad := range []string{"2:30", "24:00", "12:60", "ab:cd", "", "12:3"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}
