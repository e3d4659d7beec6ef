package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sfmlstats/internal/api"
	"github.com/wonny/sfmlstats/internal/api/handlers"
	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/internal/realtime"
	"github.com/wonny/sfmlstats/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 비교 레코드 조회 / 요약 엔드포인트 제공
- 수집 pass 수동 실행 제공
- 기록된 레코드를 websocket 으로 실시간 전송

Endpoints:
  GET  /health                           - Health check
  GET  /api/comparison?days=N            - 최근 N일 레코드
  GET  /api/comparison/summary?days=N    - 소스별 요약
  GET  /api/comparison/{date}            - 하루 레코드
  POST /api/comparison/collect/{pass}    - morning|evening|historical|repair
  GET  /ws/comparison                    - 실시간 레코드 스트림

Example:
  go run ./cmd/sfmlstats api
  go run ./cmd/sfmlstats api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄러를 같은 프로세스에서 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SFML Stats API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	// Handlers
	hub := realtime.NewHub(a.provider, log)
	defer hub.Close()

	comparisonHandler := handlers.NewComparisonHandler(a.provider, a.collector, a.cfg.Comparison, log).
		WithCache(redis.NewCache(a.rdb, "sfmlstats"))
	if a.rdb.Enabled() {
		comparisonHandler = comparisonHandler.WithDistributedLimiter(redis.NewRateLimiter(a.rdb, "sfmlstats"))
	}

	// 기록된 날짜는 캐시 무효화 후 구독자에게 전송
	a.collector.WithNotifier(contracts.Notifiers{comparisonHandler, hub})

	router := api.NewRouter(comparisonHandler, hub.ServeWS, log)
	server := api.New(a.cfg, log, router)

	if apiWithScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
