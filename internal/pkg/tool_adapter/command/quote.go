package command

import "strings"

// IsShellSafe 字符串不含需要转义的 shell 字符
func IsShellSafe(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("_@%+=:,./-", c) >= 0:
		default:
			return false
		}
	}
	return true
}

// ShellQuote 将值转为可安全嵌入 sh -c 命令行的单个参数
// 安全字符串原样返回，空串保持为空，使未提供的凭据仍被渲染为空
func ShellQuote(s string) string {
	if s == "" || IsShellSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
