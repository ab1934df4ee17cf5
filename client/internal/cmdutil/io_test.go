package cmdutil

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{in: 0, want: "0 B"},
		{in: 1023, want: "1023 B"},
		{in: 1024, want: "1.0 KiB"},
		{in: 1536, want: "1.5 KiB"},
		{in: 5 * 1024 * 1024, want: "5.0 MiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanSize(tt.in))
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", FormatTime(nil))
	zero := time.Time{}
	assert.Equal(t, "-", FormatTime(&zero))
}
