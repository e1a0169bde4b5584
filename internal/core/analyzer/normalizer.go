package analyzer

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"neoprobe/internal/pkg/logger"
)

const (
	// NoMeaningfulOutput 输入为空或过短
	NoMeaningfulOutput = "No meaningful output"
	// NoOutputAfterCleaning 过滤后没有剩余内容
	NoOutputAfterCleaning = "Command executed but produced no meaningful output"
	// TruncationMarker 截断标记行
	TruncationMarker = "... (output truncated for readability) ..."

	maxLines  = 30
	headLines = 20
	tailLines = 5
)

// noisePatterns 工具输出中的噪声行：进度提示、网络错误、Python 堆栈、富文本边框
var noisePatterns = []string{
	`working on it`,
	`please wait`,
	`loading`,
	`^\s*\.*\s*$`,
	`connection.*timeout`,
	`no route to host`,
	`network is unreachable`,
	`Error retrieving os arch`,
	`Traceback \(most recent call last\)`,
	`Exception while calling proto_flow`,
	`╭──.*?─+╮`,
	`│.*?│`,
	`╰──.*?─+╯`,
}

var noiseMatchers = compileNoise(noisePatterns)

func compileNoise(patterns []string) []*regexp2.Regexp {
	out := make([]*regexp2.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re := regexp2.MustCompile(p, regexp2.IgnoreCase)
		re.MatchTimeout = 100 * time.Millisecond
		out = append(out, re)
	}
	return out
}

func isNoise(line string) bool {
	for _, re := range noiseMatchers {
		ok, err := re.MatchString(line)
		if err != nil {
			// 匹配超时按非噪声处理，保留原始行
			logger.Debugf("noise pattern %q timed out: %v", re.String(), err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Clean 清洗命令输出
// 逐行去空白、去重（保留首次出现）、去噪声、去掉长度不超过 2 的行；
// 超过 30 行时保留前 20 行、截断标记和后 5 行。
// 需要截断时先移除输入中已有的截断标记，对自身输出再次调用结果不变。
func Clean(raw string) string {
	if len(strings.TrimSpace(raw)) < 3 {
		return NoMeaningfulOutput
	}

	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}

		if len([]rune(line)) <= 2 || isNoise(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	if len(cleaned) > maxLines {
		cleaned = dropMarker(cleaned)
	}
	if len(cleaned) > maxLines {
		truncated := make([]string, 0, headLines+1+tailLines)
		truncated = append(truncated, cleaned[:headLines]...)
		truncated = append(truncated, TruncationMarker)
		truncated = append(truncated, cleaned[len(cleaned)-tailLines:]...)
		cleaned = truncated
	}

	if len(cleaned) == 0 {
		return NoOutputAfterCleaning
	}
	return strings.Join(cleaned, "\n")
}

func dropMarker(lines []string) []string {
	out := lines[:0]
	for _, l := range lines {
		if l != TruncationMarker {
			out = append(out, l)
		}
	}
	return out
}
