package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHarden(t *testing.T) {
	tests := []struct {
		name     string
		cmd      string
		timeout  time.Duration
		expected string
	}{
		{
			name:     "ssh gets batch options",
			cmd:      "ssh root@10.0.0.5 id",
			timeout:  time.Minute,
			expected: "ssh -o BatchMode=yes -o ConnectTimeout=10 -o StrictHostKeyChecking=no root@10.0.0.5 id",
		},
		{
			name:     "ssh with batch mode untouched",
			cmd:      "ssh -o BatchMode=yes 10.0.0.5",
			timeout:  time.Minute,
			expected: "ssh -o BatchMode=yes 10.0.0.5",
		},
		{
			name:     "ssh-keyscan untouched",
			cmd:      "ssh-keyscan -T 10 10.0.0.5",
			timeout:  time.Minute,
			expected: "ssh-keyscan -T 10 10.0.0.5",
		},
		{
			name:     "nxc ssh untouched",
			cmd:      `nxc ssh 10.0.0.5 -u "" -p ""`,
			timeout:  time.Minute,
			expected: `nxc ssh 10.0.0.5 -u "" -p ""`,
		},
		{
			name:     "telnet capped at fifteen seconds",
			cmd:      "telnet 10.0.0.5 23",
			timeout:  time.Minute,
			expected: "timeout 15 telnet 10.0.0.5 23",
		},
		{
			name:     "telnet with short timeout",
			cmd:      "telnet 10.0.0.5 23",
			timeout:  10 * time.Second,
			expected: "timeout 10 telnet 10.0.0.5 23",
		},
		{
			name:     "piped telnet untouched",
			cmd:      `echo "quit" | timeout 10 telnet 10.0.0.5 23`,
			timeout:  time.Minute,
			expected: `echo "quit" | timeout 10 telnet 10.0.0.5 23`,
		},
		{
			name:     "nc verbose without wait",
			cmd:      "nc -v 10.0.0.5 88",
			timeout:  time.Minute,
			expected: "nc -w 5 -v 10.0.0.5 88",
		},
		{
			name:     "nc with wait untouched",
			cmd:      "nc -v -n -w 5 10.0.0.5 21",
			timeout:  time.Minute,
			expected: "nc -v -n -w 5 10.0.0.5 21",
		},
		{
			name:     "ntds gets users flag",
			cmd:      "nxc smb 10.0.0.5 -u a -p b --ntds",
			timeout:  time.Minute,
			expected: "nxc smb 10.0.0.5 -u a -p b --ntds --users",
		},
		{
			name:     "empty command",
			cmd:      "  ",
			timeout:  time.Minute,
			expected: "  ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Harden(tt.cmd, tt.timeout))
		})
	}
}

func TestHardenIsIdempotent(t *testing.T) {
	for _, cmd := range []string{"ssh 10.0.0.5", "nc -v 10.0.0.5 88", "nxc smb x --ntds"} {
		once := Harden(cmd, time.Minute)
		assert.Equal(t, once, Harden(once, time.Minute), cmd)
	}
}
