package model

// OpenPort 端口发现阶段得到的开放端口
type OpenPort struct {
	Port    int    `json:"port"`
	Service string `json:"service"` // 发现工具识别的服务名，未知时为 unknown
}

// PortNumbers 提取端口号
func PortNumbers(ports []OpenPort) []int {
	out := make([]int, len(ports))
	for i, p := range ports {
		out[i] = p.Port
	}
	return out
}
