package probe

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"uptime/internal/config"
	"uptime/internal/storage"
)

// ping 固定发包数
const pingPacketCount = 5

// ping 文本输出解析
var (
	pingReceivedPattern = regexp.MustCompile(`(\d+)\s+(?:packets\s+)?received`)
	pingRTTPattern      = regexp.MustCompile(`=\s*([\d.]+)/([\d.]+)/([\d.]+)(?:/([\d.]+))?\s*ms`)
)

// PingProbe Ping 探测
// 调用系统 ping 进程并解析文本输出，计算丢包率与平均往返时延
type PingProbe struct {
	params  *config.PingParams
	timeout time.Duration
}

// NewPingProbe 创建 Ping 探测器
func NewPingProbe(params *config.PingParams, defaultTimeout time.Duration) *PingProbe {
	return &PingProbe{params: params, timeout: defaultTimeout}
}

// Kind 返回探测类型
func (p *PingProbe) Kind() string { return config.KindPing }

// Check 执行单次探测
func (p *PingProbe) Check(ctx context.Context) *Result {
	host := Hostname(p.params.Address)

	// 目标会拼接到外部进程参数，必须先做安全校验
	if !IsSafeHost(host) {
		return Fail(config.KindPing, storage.ReasonInvalidParams,
			fmt.Sprintf("ping 目标含不安全字符: %q", p.params.Address))
	}

	// 5 个包的固定耗时远超单包延迟阈值，超时给足余量
	timeout := p.timeout
	if timeout < 15*time.Second {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ping", "-c", strconv.Itoa(pingPacketCount), "-n", host)
	output, runErr := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return Fail(config.KindPing, storage.ReasonTimeout,
			fmt.Sprintf("ping 超时(%v)", timeout))
	}

	received, parsed := parsePingReceived(output)
	if !parsed {
		if runErr != nil {
			return Fail(config.KindPing, storage.ReasonError,
				fmt.Sprintf("ping 进程失败: %v", runErr))
		}
		return Fail(config.KindPing, storage.ReasonInvalidResponse,
			"无法解析 ping 输出")
	}

	if received == 0 {
		return Fail(config.KindPing, storage.ReasonDown, "目标无任何应答")
	}

	successPercent := float64(received) / float64(pingPacketCount) * 100
	lossPercent := 100 - successPercent
	if p.params.MinSuccessPercent > 0 && successPercent < p.params.MinSuccessPercent {
		return Fail(config.KindPing, storage.ReasonPacketLoss,
			fmt.Sprintf("丢包 %.0f%% 超出允许范围（成功率 %.0f%% < %.0f%%）",
				lossPercent, successPercent, p.params.MinSuccessPercent))
	}

	avgRTT, ok := parsePingAvgRTT(output)
	if !ok {
		return Fail(config.KindPing, storage.ReasonInvalidResponse,
			"无法从 ping 输出解析往返时延")
	}
	if p.params.MaxLatencyDuration > 0 && avgRTT > p.params.MaxLatencyDuration {
		return Fail(config.KindPing, storage.ReasonQueryNotSatisfied,
			fmt.Sprintf("平均时延超出阈值: %v > %v", avgRTT.Round(time.Microsecond), p.params.MaxLatencyDuration))
	}

	return Succeed(config.KindPing, avgRTT,
		fmt.Sprintf("收到 %d/%d 个应答，丢包 %.0f%%", received, pingPacketCount, lossPercent))
}

// parsePingReceived 从输出解析收到的应答数
func parsePingReceived(output []byte) (int, bool) {
	m := pingReceivedPattern.FindSubmatch(output)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// parsePingAvgRTT 从 rtt min/avg/max 统计行解析平均往返时延
func parsePingAvgRTT(output []byte) (time.Duration, bool) {
	m := pingRTTPattern.FindSubmatch(output)
	if m == nil {
		return 0, false
	}
	avgMs, err := strconv.ParseFloat(string(m[2]), 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(avgMs * float64(time.Millisecond)), true
}
