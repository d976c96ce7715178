package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"swingbot/internal/features"
)

// ErrSchemaMismatch 模型工件与当前特征 schema 不一致，属致命错误。
var ErrSchemaMismatch = errors.New("模型工件与特征 schema 不匹配")

// Coefficients 离场模型工件。权重/均值/方差均按特征名索引，
// 允许新版本追加特征而不破坏旧字段；工件本身不可变，重训生成新文件。
type Coefficients struct {
	Version      string             `json:"version"`
	TrainedAt    time.Time          `json:"trained_at"`
	FeatureNames []string           `json:"feature_names"`
	Weights      map[string]float64 `json:"weights"`
	Bias         float64            `json:"bias"`
	Means        map[string]float64 `json:"means"`
	Stds         map[string]float64 `json:"stds"`
	Samples      int                `json:"samples"`
	Metrics      EvalMetrics        `json:"metrics"`
}

const artifactSchema = `{
  "type": "object",
  "required": ["version", "trained_at", "feature_names", "weights", "bias", "means", "stds"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "trained_at": {"type": "string"},
    "feature_names": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "weights": {"type": "object", "additionalProperties": {"type": "number"}},
    "bias": {"type": "number"},
    "means": {"type": "object", "additionalProperties": {"type": "number"}},
    "stds": {"type": "object", "additionalProperties": {"type": "number"}},
    "samples": {"type": "integer"}
  }
}`

var compiledSchema = jsonschema.MustCompileString("exit_model.json", artifactSchema)

// Load 读取并校验模型工件。JSON 结构不合法或特征集合与当前代码
// 不一致时返回致命错误，调用方不得带病继续。
func Load(path string) (*Coefficients, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取模型工件失败: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("模型工件不是合法 JSON (%s): %w", path, err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("模型工件结构校验失败 (%s): %w", path, err)
	}
	var c Coefficients
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("解析模型工件失败 (%s): %w", path, err)
	}
	if err := c.CheckSchema(); err != nil {
		return nil, err
	}
	return &c, nil
}

// CheckSchema 校验工件覆盖当前特征 schema 的每个特征。
// 工件中允许存在多余的历史特征，但缺失任何当前特征即视为不匹配。
func (c *Coefficients) CheckSchema() error {
	var missing []string
	for _, name := range features.Names() {
		_, hasW := c.Weights[name]
		_, hasM := c.Means[name]
		_, hasS := c.Stds[name]
		if !hasW || !hasM || !hasS {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: 缺失特征 [%s] (version=%s)", ErrSchemaMismatch, strings.Join(missing, ", "), c.Version)
	}
	return nil
}

// Save 将工件原子写入磁盘（先写临时文件再改名）。
func (c *Coefficients) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
