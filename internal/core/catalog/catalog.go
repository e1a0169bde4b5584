/**
 * 服务目录
 * @date: 2026.03.03
 * @description: 端口到服务画像的静态映射，内置目录随二进制嵌入，可通过配置替换为外部文件
 */

package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"neoprobe/internal/core/model"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// ServiceProfile 服务画像，加载后只读
type ServiceProfile struct {
	Name     string
	RiskBase float64
	checks   map[model.CheckCategory][]string
}

// NewServiceProfile 创建服务画像
func NewServiceProfile(name string, riskBase float64, checks map[model.CheckCategory][]string) *ServiceProfile {
	cp := make(map[model.CheckCategory][]string, len(checks))
	for cat, templates := range checks {
		cp[cat] = slices.Clone(templates)
	}
	return &ServiceProfile{Name: name, RiskBase: riskBase, checks: cp}
}

// Templates 返回某类别的命令模板副本，类别不存在时为空
func (p *ServiceProfile) Templates(category model.CheckCategory) []string {
	return slices.Clone(p.checks[category])
}

// TemplateCount 全部类别的模板数量
func (p *ServiceProfile) TemplateCount() int {
	n := 0
	for _, templates := range p.checks {
		n += len(templates)
	}
	return n
}

// Catalog 服务目录
type Catalog struct {
	services map[int]*ServiceProfile
	generic  *ServiceProfile
}

// New 使用已构建的画像创建目录
func New(services map[int]*ServiceProfile, generic *ServiceProfile) *Catalog {
	cp := make(map[int]*ServiceProfile, len(services))
	for port, p := range services {
		cp[port] = p
	}
	return &Catalog{services: cp, generic: generic}
}

// Lookup 查询端口对应的服务画像，未收录的端口返回通用画像
// 通用画像每次返回同一个实例
func (c *Catalog) Lookup(port int) *ServiceProfile {
	if p, ok := c.services[port]; ok {
		return p
	}
	return c.generic
}

// Known 端口是否被目录收录
func (c *Catalog) Known(port int) bool {
	_, ok := c.services[port]
	return ok
}

// Generic 通用画像
func (c *Catalog) Generic() *ServiceProfile {
	return c.generic
}

// Ports 收录的端口，升序
func (c *Catalog) Ports() []int {
	ports := make([]int, 0, len(c.services))
	for p := range c.services {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// profileSpec 目录文件中的画像定义
type profileSpec struct {
	Name     string              `yaml:"name"`
	RiskBase float64             `yaml:"risk_base"`
	Checks   map[string][]string `yaml:"checks"`
}

// catalogSpec 目录文件结构
type catalogSpec struct {
	Generic  profileSpec         `yaml:"generic"`
	Services map[int]profileSpec `yaml:"services"`
}

var knownCategories = map[model.CheckCategory]struct{}{
	model.CategoryEnumeration:     {},
	model.CategoryAuthentication:  {},
	model.CategoryEscalation:      {},
	model.CategoryVulnerabilities: {},
	model.CategoryFallback:        {},
}

func (s profileSpec) build(label string) (*ServiceProfile, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("%s: name is required", label)
	}
	if s.RiskBase < 0 || s.RiskBase > 10 {
		return nil, fmt.Errorf("%s: risk_base %.1f out of range [0,10]", label, s.RiskBase)
	}
	checks := make(map[model.CheckCategory][]string, len(s.Checks))
	for name, templates := range s.Checks {
		cat := model.CheckCategory(name)
		if _, ok := knownCategories[cat]; !ok {
			return nil, fmt.Errorf("%s: unknown check category %q", label, name)
		}
		checks[cat] = templates
	}
	return NewServiceProfile(s.Name, s.RiskBase, checks), nil
}

// Load 从 YAML 读取目录
func Load(r io.Reader) (*Catalog, error) {
	var spec catalogSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	generic, err := spec.Generic.build("generic")
	if err != nil {
		return nil, err
	}

	services := make(map[int]*ServiceProfile, len(spec.Services))
	for port, ps := range spec.Services {
		if port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port %d in catalog", port)
		}
		p, err := ps.build(fmt.Sprintf("port %d", port))
		if err != nil {
			return nil, err
		}
		services[port] = p
	}

	return New(services, generic), nil
}

// LoadFile 从文件读取目录
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default 内置目录
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(bytes.NewReader(embeddedCatalog))
		if err != nil {
			// 内置目录由测试保证可解析
			panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Resolve 路径为空时返回内置目录，否则读取自定义目录文件
func Resolve(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
