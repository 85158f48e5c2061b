package probe

import (
	"testing"
	"time"
)

// Linux iputils 风格输出
const pingOutputLinux = `PING example.com (93.184.216.34) 56(84) bytes of data.
64 bytes from 93.184.216.34: icmp_seq=1 ttl=56 time=12.3 ms
64 bytes from 93.184.216.34: icmp_seq=2 ttl=56 time=11.8 ms

--- example.com ping statistics ---
5 packets transmitted, 4 received, 20% packet loss, time 4005ms
rtt min/avg/max/mdev = 11.839/12.311/13.041/0.441 ms
`

// BSD/macOS 风格输出（无 mdev 字段、无 "packets" 前缀）
const pingOutputBSD = `PING example.com (93.184.216.34): 56 data bytes
64 bytes from 93.184.216.34: icmp_seq=0 ttl=56 time=12.3 ms

--- example.com ping statistics ---
5 packets transmitted, 5 packets received, 0.0% packet loss
round-trip min/avg/max = 11.839/12.311/13.041 ms
`

const pingOutputAllLost = `PING 10.255.255.1 (10.255.255.1) 56(84) bytes of data.

--- 10.255.255.1 ping statistics ---
5 packets transmitted, 0 received, 100% packet loss, time 4100ms
`

func TestParsePingReceived(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   int
		wantOK bool
	}{
		{"linux partial loss", pingOutputLinux, 4, true},
		{"bsd all received", pingOutputBSD, 5, true},
		{"all lost", pingOutputAllLost, 0, true},
		{"garbage", "command not found", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePingReceived([]byte(tt.output))
			if ok != tt.wantOK {
				t.Fatalf("parsePingReceived() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("parsePingReceived() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParsePingAvgRTT(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   time.Duration
		wantOK bool
	}{
		{"linux rtt line", pingOutputLinux, 12311 * time.Microsecond, true},
		{"bsd round-trip line", pingOutputBSD, 12311 * time.Microsecond, true},
		{"no rtt line", pingOutputAllLost, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePingAvgRTT([]byte(tt.output))
			if ok != tt.wantOK {
				t.Fatalf("parsePingAvgRTT() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("parsePingAvgRTT() = %v, want %v", got, tt.want)
			}
		})
	}
}
