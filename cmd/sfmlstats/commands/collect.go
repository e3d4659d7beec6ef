package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sfmlstats/internal/collector"
)

// collectCmd runs one collection pass in the foreground
var collectCmd = &cobra.Command{
	Use:   "collect [morning|evening|historical|repair]",
	Short: "수집 pass 즉시 실행",
	Long: `수집 pass 하나를 즉시 실행합니다.

Passes:
  morning     - 오늘 내부/외부 예측 기록 (비어 있는 필드만)
  evening     - 실측 발전량, 정확도, 최우수 소스 기록 + 보존기간 정리
  historical  - 최근 N일 누락 구간 보충 (--days)
  repair      - 최근 N일 누락 내부 예측 복구 (--days)

Example:
  go run ./cmd/sfmlstats collect morning
  go run ./cmd/sfmlstats collect historical --days 14`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"morning", "evening", "historical", "repair"},
	RunE:      runCollect,
}

var collectDays int

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().IntVar(&collectDays, "days", 0, "historical/repair 대상 일수 (기본: BACKFILL_DAYS)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	pass, err := collector.ParsePass(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	days := collectDays
	if days <= 0 {
		days = a.cfg.Comparison.BackfillDays
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	PrintHeader(fmt.Sprintf("Collect: %s", pass), time.Now().In(a.cfg.Comparison.Location()))

	result, err := a.collector.Run(ctx, pass, days)
	if err != nil {
		return err
	}

	PrintPassResult(result)
	if !result.OK {
		return fmt.Errorf("%s pass failed", pass)
	}
	return nil
}
