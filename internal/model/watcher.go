package model

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"swingbot/internal/logger"
)

// HotEvaluator 持有当前生效的评估器，并监听工件文件热更新。
// 重载失败时继续使用旧模型。
type HotEvaluator struct {
	mu   sync.RWMutex
	ev   *Evaluator
	path string
}

// NewHotEvaluator 加载初始工件。初次加载失败直接返回错误。
func NewHotEvaluator(path string) (*HotEvaluator, error) {
	coef, err := Load(path)
	if err != nil {
		return nil, err
	}
	ev, err := NewEvaluator(coef)
	if err != nil {
		return nil, err
	}
	return &HotEvaluator{ev: ev, path: path}, nil
}

// Current 返回当前生效的评估器。
func (h *HotEvaluator) Current() *Evaluator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ev
}

// Watch 阻塞监听工件目录，文件被替换后重新加载。ctx 取消时返回。
func (h *HotEvaluator) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// 监听目录而不是文件本身，原子替换（rename 覆盖）也能收到事件
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		return err
	}
	target := filepath.Clean(h.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			h.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("模型工件监听出错: %v", err)
		}
	}
}

func (h *HotEvaluator) reload() {
	coef, err := Load(h.path)
	if err != nil {
		logger.Errorf("模型工件重载失败，继续使用旧模型: %v", err)
		return
	}
	ev, err := NewEvaluator(coef)
	if err != nil {
		logger.Errorf("模型工件重载失败，继续使用旧模型: %v", err)
		return
	}
	h.mu.Lock()
	h.ev = ev
	h.mu.Unlock()
	logger.Infof("模型工件已热更新: version=%s trained_at=%s", coef.Version, coef.TrainedAt.Format("2006-01-02 15:04:05"))
}
