package market

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Universe 描述回测与训练使用的股票池及行业归属。
type Universe struct {
	Tickers []string          `yaml:"tickers"`
	Sectors map[string]string `yaml:"sectors"`
}

// LoadUniverse 从 YAML 文件加载股票池，自动去重并统一大写。
func LoadUniverse(path string) (*Universe, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取股票池文件失败: %w", err)
	}
	var u Universe
	if err := yaml.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("解析股票池文件失败 (%s): %w", path, err)
	}
	u.normalize()
	if len(u.Tickers) == 0 {
		return nil, fmt.Errorf("股票池为空 (%s)", path)
	}
	return &u, nil
}

func (u *Universe) normalize() {
	seen := make(map[string]bool, len(u.Tickers))
	out := make([]string, 0, len(u.Tickers))
	for _, t := range u.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	u.Tickers = out

	normalized := make(map[string]string, len(u.Sectors))
	for k, v := range u.Sectors {
		k = strings.ToUpper(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		normalized[k] = v
	}
	u.Sectors = normalized
}

// Sector 返回 ticker 的行业，未配置时返回 UNKNOWN。
func (u *Universe) Sector(ticker string) string {
	if u == nil {
		return "UNKNOWN"
	}
	if s, ok := u.Sectors[strings.ToUpper(strings.TrimSpace(ticker))]; ok {
		return s
	}
	return "UNKNOWN"
}

// Contains 判断 ticker 是否在股票池内。
func (u *Universe) Contains(ticker string) bool {
	if u == nil {
		return false
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	for _, t := range u.Tickers {
		if t == ticker {
			return true
		}
	}
	return false
}
