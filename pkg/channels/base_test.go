package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseChannel_IsAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowList []string
		senderID  string
		want      bool
	}{
		{"empty allowlist admits everyone", nil, "123", true},
		{"plain id match", []string{"123"}, "123", true},
		{"plain id mismatch", []string{"123"}, "456", false},
		{"compound id matches id part", []string{"123"}, "123|alice", true},
		{"compound id matches username part", []string{"alice"}, "123|alice", true},
		{"username match is case insensitive", []string{"Alice"}, "123|alice", true},
		{"at prefix is stripped", []string{"@alice"}, "123|alice", true},
		{"blank entries are skipped", []string{"  ", "123"}, "123", true},
		{"compound mismatch", []string{"bob"}, "123|alice", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBaseChannel("test", nil, tt.allowList)
			assert.Equal(t, tt.want, c.IsAllowed(tt.senderID))
		})
	}
}

func TestBaseChannel_RunningFlag(t *testing.T) {
	c := NewBaseChannel("test", nil, nil)
	assert.False(t, c.IsRunning())
	c.setRunning(true)
	assert.True(t, c.IsRunning())
	c.setRunning(false)
	assert.False(t, c.IsRunning())
}
