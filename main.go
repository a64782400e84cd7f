package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"scripture_quiz_backend/internal/app"
	"scripture_quiz_backend/internal/config"
	"scripture_quiz_backend/pkg/logger"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "configs", "配置文件所在目录（读取其中的 config.yaml）")
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	sweepOnce := flag.Bool("sweep-once", false, "执行一次过期作答清理后退出，供 cron 调用")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.MigrateOnly = *migrateOnly
	cfg.SweepOnce = *sweepOnce

	application := app.NewApp(cfg, *configPath)

	// 迁移完成后直接退出
	if cfg.MigrateOnly {
		logger.Log.Info("Database migration completed, exiting")
		application.Close()
		return
	}

	if cfg.SweepOnce {
		if err := application.SweepOnce(); err != nil {
			logger.Log.Fatal("Sweep failed", zap.Error(err))
		}
		return
	}

	application.Run()
}
