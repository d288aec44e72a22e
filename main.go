// news-lens 聚合政治新闻头条，补充多来源报道、来源倾向和舆情
//
// 用法:
//
//	news-lens serve     # 启动 HTTP API 和定时抓取
//	news-lens ingest    # 抓取一次所有订阅源并输出结果
//	news-lens version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"news-lens/config"
	"news-lens/internal/handler"
	"news-lens/internal/lock"
	"news-lens/internal/logging"
	"news-lens/internal/scheduler"
	"news-lens/internal/service"
	"news-lens/internal/store"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "news-lens",
		Short:         "Headline aggregation with source bias and public opinion enrichment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(ingestCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		logging.Log.Error(err)
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func ingestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Poll every configured feed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(*configPath)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("news-lens %s\n", version)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runIngest(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	report := service.NewIngestService(st, cfg.Ingest).Ingest(context.Background())
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	locker, closeLocker, err := newLocker(cfg.Redis)
	if err != nil {
		return err
	}
	defer closeLocker()

	// 初始化服务
	bias := service.NewBiasClient(cfg.Bias)
	sentiment := service.NewSentimentClient(cfg.Sentiment)
	videos := service.NewVideoDiscovery(cfg.Video)
	sourceSvc := service.NewSourceService(st, bias, locker, cfg.Redis.LockWait)
	opinionSvc := service.NewOpinionService(st, videos, sentiment, locker, cfg.Redis.LockWait)
	ingestSvc := service.NewIngestService(st, cfg.Ingest)
	statusSvc := service.NewStatusService(st, sentiment)

	sched := scheduler.NewScheduler(ingestSvc, cfg.Ingest.Schedule)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(), cors.New(corsConfig(cfg.Server.CORSOrigins)))

	h := handler.NewHandler(st, sourceSvc, opinionSvc, videos, sentiment, ingestSvc, statusSvc)
	h.SetScheduler(sched)
	h.RegisterRoutes(r)

	srv := &http.Server{Addr: cfg.GetServerAddress(), Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logging.Log.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case sig := <-quit:
		logging.Log.Infof("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newLocker 配置了 Redis 地址时使用 Redis 锁，否则使用进程内锁
func newLocker(cfg config.RedisConfig) (lock.Locker, func(), error) {
	if cfg.Addr == "" {
		logging.Log.Info("REDIS_ADDR not set, using in-process claim lock")
		return lock.NewMemoryLocker(), func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rl, err := lock.NewRedisLocker(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return rl, func() { _ = rl.Close() }, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	return c
}
