// ### 发布流程
// 1. **更新版本号**：修改 `internal/pkg/version/version.go`
// 2. **构建注入**：go build -ldflags "-X neoprobe/internal/pkg/version.GitCommit=$(git rev-parse --short HEAD) ..."
// 3. **推送代码和 Tag**

package version

import "runtime"

var (
	Version   = "1.3.0" // 版本号 -- 发布时候更新版本号
	BuildTime string
	GitCommit string
	GoVersion = runtime.Version()
)

func GetVersion() string {
	return Version
}

// GetFullVersion 返回带提交号的版本字符串
func GetFullVersion() string {
	if GitCommit == "" {
		return Version
	}
	return Version + "+" + GitCommit
}
