package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"uptime/internal/logger"
)

// Watcher 配置文件监听器
// 外部协作方（UI/表单）落盘配置后，由此产生 settingsChanged 信号驱动核心重调度
type Watcher struct {
	loader       *Loader
	filename     string
	watcher      *fsnotify.Watcher
	onReload     func(*AppConfig)
	debounceTime time.Duration
	watchMu      sync.Mutex
	watchedDirs  map[string]struct{}
}

// NewWatcher 创建配置监听器
func NewWatcher(loader *Loader, filename string, onReload func(*AppConfig)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		loader:       loader,
		filename:     filename,
		watcher:      watcher,
		onReload:     onReload,
		debounceTime: 200 * time.Millisecond, // 防抖延迟
	}, nil
}

// Start 启动监听（监听父目录以兼容不同编辑器）
func (w *Watcher) Start(ctx context.Context) error {
	// 监听父目录而非文件本身，避免编辑器 rename 导致监听失效
	dir := filepath.Dir(w.filename)
	targetFile := filepath.Clean(w.filename)
	if err := w.addWatch(dir); err != nil {
		return err
	}

	logger.Info("config", "开始监听配置文件", "file", w.filename, "dir", dir)

	go func() {
		var debounceTimer *time.Timer
		for {
			select {
			case <-ctx.Done():
				logger.Info("config", "配置监听器已停止")
				w.watcher.Close()
				return

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}

				// 只关心目标配置文件的写入/创建/重命名事件
				if filepath.Clean(event.Name) != targetFile {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				// 防抖：编辑器保存通常触发多个事件
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(w.debounceTime, w.reload)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logger.Error("config", "配置监听出错", "error", err)
			}
		}
	}()

	return nil
}

// addWatch 添加目录监听（幂等）
func (w *Watcher) addWatch(dir string) error {
	w.watchMu.Lock()
	defer w.watchMu.Unlock()

	if w.watchedDirs == nil {
		w.watchedDirs = make(map[string]struct{})
	}
	clean := filepath.Clean(dir)
	if _, ok := w.watchedDirs[clean]; ok {
		return nil
	}
	if err := w.watcher.Add(clean); err != nil {
		return err
	}
	w.watchedDirs[clean] = struct{}{}
	return nil
}

// reload 重新加载配置并触发回调
// 加载失败时保留旧配置继续运行，只记录错误
func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.filename)
	if err != nil {
		logger.Error("config", "配置热更新失败，保留旧配置", "error", err)
		return
	}

	logger.Info("config", "配置已热更新",
		"monitors", len(cfg.Monitors), "notifiers", len(cfg.Notifiers))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
