package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"uptime/internal/bus"
	"uptime/internal/config"
	"uptime/internal/logger"
	"uptime/internal/notify"
	"uptime/internal/scheduler"
	"uptime/internal/storage"
)

func main() {
	logger.Info("main", "Uptime Pulse 启动")

	// 配置文件路径
	configFile := "config.yaml"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	// 创建配置加载器
	loader := config.NewLoader()

	// 初始加载配置
	cfg, err := loader.Load(configFile)
	if err != nil {
		logger.Error("main", "无法加载配置文件", "error", err)
		os.Exit(1)
	}

	logger.Info("main", "配置加载完成",
		"monitors", len(cfg.Monitors),
		"notifiers", len(cfg.Notifiers),
		"poll_interval", cfg.PollInterval,
		"poll_concurrency", cfg.PollConcurrency,
	)

	// 初始化存储（支持 SQLite 和 PostgreSQL）
	store, err := storage.New(&cfg.Storage)
	if err != nil {
		logger.Error("main", "初始化存储失败", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		logger.Error("main", "初始化数据库失败", "error", err)
		os.Exit(1)
	}
	logger.Info("main", "存储已就绪", "type", cfg.Storage.Type)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 进程内消息总线：失效信号与状态跃迁事件的唯一出口
	b := bus.New()

	// 通知分发器：订阅状态跃迁事件，向各渠道投递
	registry := notify.NewRegistry(cfg.Notifiers)
	dispatcher := notify.NewDispatcher(registry, cfg)
	go dispatcher.Run(ctx, b.SubscribeStatusChange())

	// 创建并启动调度器
	sched := scheduler.NewScheduler(store, b)
	sched.Start(ctx, cfg)

	// 启动配置监听器（热更新）
	watcher, err := config.NewWatcher(loader, configFile, func(newCfg *config.AppConfig) {
		// 配置热更新回调
		sched.UpdateConfig(newCfg)
		dispatcher.UpdateConfig(newCfg)
		b.PublishSettingsChanged()
	})

	if err != nil {
		logger.Warn("main", "配置监听器创建失败，热更新功能不可用", "error", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("main", "配置监听器启动失败，热更新功能不可用", "error", err)
		} else {
			logger.Info("main", "配置热更新已启用")
		}
	}

	// 监听中断信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 等待中断信号
	<-sigChan
	logger.Info("main", "收到关闭信号，正在优雅退出")

	// 取消上下文并停止调度器（等待在途检查收尾）
	cancel()
	sched.Stop()

	logger.Info("main", "服务已安全退出")
}
