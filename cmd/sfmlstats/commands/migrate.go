package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sfmlstats/internal/comparison"
)

// migrateCmd applies the embedded schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 적용",
	Long: `stats_forecast_comparison 테이블과 업스트림 예측 테이블을 생성합니다.
모든 문장은 IF NOT EXISTS 이므로 반복 실행해도 안전합니다.

Example:
  go run ./cmd/sfmlstats migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	lease, err := a.acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	migrations, err := comparison.Migrations()
	if err != nil {
		return err
	}

	fmt.Printf("Applying %d migration(s) via %s connection...\n", len(migrations), lease.Tier)
	if err := comparison.Migrate(ctx, lease.Conn, a.log); err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	for _, m := range migrations {
		fmt.Printf("  ✅ %s\n", m.Name)
	}

	return nil
}
