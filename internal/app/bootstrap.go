package app

import (
	"errors"
	"strings"

	"github.com/course-referral/internal/cache"
	"github.com/course-referral/internal/config"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/provider"
	"github.com/course-referral/internal/router"
	"github.com/course-referral/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BuildRunner 按启动模式构建服务运行器
func BuildRunner(cfg *config.Config, mode string, container *provider.Container) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	var services []Service

	// 初始化 HTTP 服务
	if runsAPI(mode) {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	// 独立指标监听
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) != "" {
		services = append(services, NewNamedHTTPService("metrics", cfg.Metrics.Addr, promhttp.Handler()))
	}

	// 初始化 Worker 服务；all 模式下队列未启用时佣金与打款在请求内同步执行
	if runsWorker(mode) {
		if !cfg.Queue.Enabled && mode == ModeAll {
			logger.Warnw("app_worker_skipped", "reason", "queue_disabled")
		} else {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}
	if !isValidMode(opts.Mode) {
		return errors.New("invalid mode: " + opts.Mode)
	}

	container := provider.NewContainer(opts.Config)
	defer closeContainer(container)

	runner, err := BuildRunner(opts.Config, opts.Mode, container)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode, "services", runner.Names())
	return RunWithOptions(runner, opts)
}

func closeContainer(container *provider.Container) {
	if container == nil {
		return
	}
	if container.QueueClient != nil {
		if err := container.QueueClient.Close(); err != nil {
			logger.Warnw("app_close_queue_client_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("app_close_redis_failed", "error", err)
	}
}
