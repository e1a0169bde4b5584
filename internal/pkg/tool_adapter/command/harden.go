package command

import (
	"strconv"
	"strings"
	"time"
)

// 交互式工具的非交互参数
const (
	sshBatchOptions    = "-o BatchMode=yes -o ConnectTimeout=10 -o StrictHostKeyChecking=no"
	netcatWaitOption   = "-w 5"
	telnetMaxTimeout   = 15 * time.Second
	ntdsPromptFlag     = "--ntds"
	ntdsNoPromptSuffix = "--users"
)

// Harden 为可能等待交互输入的命令补充非交互参数
// 只按命令的第一个词判断，管道或 shell 组合中的后续命令不做改写
//
//	ssh    -> 插入 BatchMode/ConnectTimeout/StrictHostKeyChecking
//	telnet -> 前置 timeout N（N 不超过 15 秒）
//	nc -v  -> 没有 -w 时补充 -w 5
//	--ntds -> 补充 --users，跳过 nxc 的确认提示
func Harden(cmd string, timeout time.Duration) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return cmd
	}

	switch fields[0] {
	case "ssh":
		if !strings.Contains(cmd, "BatchMode") {
			cmd = insertAfterTool(cmd, sshBatchOptions)
		}
	case "telnet":
		limit := timeout
		if limit <= 0 || limit > telnetMaxTimeout {
			limit = telnetMaxTimeout
		}
		cmd = "timeout " + strconv.FormatFloat(limit.Seconds(), 'f', -1, 64) + " " + strings.TrimLeft(cmd, " \t")
	case "nc", "ncat", "netcat":
		if hasFlag(fields, "-v") && !hasFlag(fields, "-w") {
			cmd = insertAfterTool(cmd, netcatWaitOption)
		}
	}

	if hasFlag(fields, ntdsPromptFlag) && !hasFlag(fields, ntdsNoPromptSuffix) {
		cmd = strings.Replace(cmd, ntdsPromptFlag, ntdsPromptFlag+" "+ntdsNoPromptSuffix, 1)
	}

	return cmd
}

// insertAfterTool 在第一个词之后插入参数
func insertAfterTool(cmd, args string) string {
	trimmed := strings.TrimLeft(cmd, " \t")
	tool := Tool(trimmed)
	return tool + " " + args + trimmed[len(tool):]
}

func hasFlag(fields []string, flag string) bool {
	for _, f := range fields[1:] {
		if f == flag {
			return true
		}
	}
	return false
}
