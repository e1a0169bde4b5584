package command

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingVariable 模板引用了未提供的变量
var ErrMissingVariable = errors.New("missing template variable")

// MissingVariableError 缺失变量错误，携带变量名
type MissingVariableError struct {
	Name     string
	Template string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable {%s} in %q", e.Name, e.Template)
}

// Unwrap 支持 errors.Is(err, ErrMissingVariable)
func (e *MissingVariableError) Unwrap() error {
	return ErrMissingVariable
}

// Replacements 模板变量表
type Replacements map[string]string

// Clone 复制变量表
func (r Replacements) Clone() Replacements {
	cp := make(Replacements, len(r)+1)
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// With 返回追加了一个变量的副本，原表不变
func (r Replacements) With(key, value string) Replacements {
	cp := r.Clone()
	cp[key] = value
	return cp
}

// Render 将 {name} 占位符替换为变量值
// {{ 和 }} 输出字面量花括号；不构成占位符的花括号原样保留
// 引用的变量不存在时返回 *MissingVariableError
func Render(tmpl string, vars Replacements) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl) + 32)

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i += 2
		case c == '{':
			name, end := scanIdentifier(tmpl, i+1)
			if name == "" || end >= len(tmpl) || tmpl[end] != '}' {
				b.WriteByte(c)
				i++
				continue
			}
			val, ok := vars[name]
			if !ok {
				return "", &MissingVariableError{Name: name, Template: tmpl}
			}
			b.WriteString(val)
			i = end + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// Variables 模板引用的变量名，按出现顺序去重
func Variables(tmpl string) []string {
	var names []string
	seen := make(map[string]struct{})
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '{' {
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '{' {
			i++
			continue
		}
		name, end := scanIdentifier(tmpl, i+1)
		if name == "" || end >= len(tmpl) || tmpl[end] != '}' {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		i = end
	}
	return names
}

// scanIdentifier 从 start 开始读取 [A-Za-z_][A-Za-z0-9_]*
func scanIdentifier(s string, start int) (string, int) {
	end := start
	for end < len(s) {
		c := s[end]
		isAlpha := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if isAlpha || (isDigit && end > start) {
			end++
			continue
		}
		break
	}
	return s[start:end], end
}

// Tool 返回命令的第一个词，即要执行的工具名
func Tool(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// DomainComponents 将 corp.example.com 转为 DC=corp,DC=example,DC=com
func DomainComponents(domain string) string {
	domain = strings.Trim(strings.TrimSpace(domain), ".")
	if domain == "" {
		return ""
	}
	parts := strings.Split(domain, ".")
	dcs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		dcs = append(dcs, "DC="+p)
	}
	return strings.Join(dcs, ",")
}
