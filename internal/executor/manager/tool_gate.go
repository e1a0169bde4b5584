package manager

import (
	"os/exec"
	"strings"
	"sync"

	"neoprobe/internal/executor/base"
	"neoprobe/internal/pkg/tool_adapter/command"
)

// DefaultAliases 工具别名表：旧名 -> 新名
var DefaultAliases = map[string]string{
	"crackmapexec": "nxc",
	"cme":          "nxc",
}

// LookPathFunc 可执行文件查找函数
type LookPathFunc func(file string) (string, error)

// ToolGate 工具可用性检查
// 取命令第一个词在 PATH 中查找；若存在别名且别名可用，命令被改写为别名形式
// 查询结果按工具名缓存
type ToolGate struct {
	lookPath LookPathFunc
	aliases  map[string]string
	cache    sync.Map // tool -> bool
}

var _ base.ToolChecker = (*ToolGate)(nil)

// NewToolGate 创建工具检查器，lookPath 为空时使用 exec.LookPath
func NewToolGate(lookPath LookPathFunc, aliases map[string]string) *ToolGate {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if aliases == nil {
		aliases = DefaultAliases
	}
	return &ToolGate{lookPath: lookPath, aliases: aliases}
}

// Resolve 返回可执行的命令形式以及工具是否可用
func (g *ToolGate) Resolve(cmd string) (string, bool) {
	tool := command.Tool(cmd)
	if tool == "" {
		return cmd, false
	}

	if alias, ok := g.aliases[tool]; ok && g.available(alias) {
		idx := strings.Index(cmd, tool)
		return cmd[:idx] + alias + cmd[idx+len(tool):], true
	}

	return cmd, g.available(tool)
}

// IsAvailable 命令的工具是否可用
func (g *ToolGate) IsAvailable(cmd string) bool {
	_, ok := g.Resolve(cmd)
	return ok
}

func (g *ToolGate) available(tool string) bool {
	if v, ok := g.cache.Load(tool); ok {
		return v.(bool)
	}
	_, err := g.lookPath(tool)
	ok := err == nil
	g.cache.Store(tool, ok)
	return ok
}
