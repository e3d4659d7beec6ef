package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sfmlstats/internal/comparison"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "PostgreSQL / 소스 연결 테스트",
	Long: `데이터베이스와 외부 소스 연결을 테스트합니다.

이 명령어는:
- 공유 풀 Ping / Health Check / 풀 통계
- 커넥션 획득 tier 확인 (shared / private)
- stats_forecast_comparison 테이블 존재 확인
- Home Assistant API / recorder DB 접근 확인

Example:
  go run ./cmd/sfmlstats test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SFML Stats Connection Test ===")

	a, err := newApp()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	defer a.Close()

	fmt.Printf("✅ Config loaded (ENV: %s)\n", a.cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(a.cfg.Database.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.db != nil {
		status, err := a.db.HealthCheck(ctx)
		if err != nil {
			fmt.Printf("❌ Health check failed: %v\n", err)
		} else {
			fmt.Println("✅ Shared pool Health Check:")
			fmt.Printf("   Healthy: %v\n", status.Healthy)
			fmt.Printf("   Response Time: %v\n", status.ResponseTime)
			fmt.Printf("   Max / Total / Idle Connections: %d / %d / %d\n\n",
				status.Stats.MaxConns, status.Stats.TotalConns, status.Stats.IdleConns)
		}
	} else {
		fmt.Println("⚠️  Shared pool unavailable")
	}

	lease, err := a.acquire(ctx)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	defer lease.Release()
	fmt.Printf("✅ Connection acquired (tier: %s)\n", lease.Tier)

	var exists bool
	err = lease.Conn.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, comparison.TableName).Scan(&exists)
	switch {
	case err != nil:
		fmt.Printf("❌ Table check failed: %v\n", err)
	case exists:
		fmt.Printf("✅ Table %s exists\n", comparison.TableName)
	default:
		fmt.Printf("⚠️  Table %s missing, run: sfmlstats migrate\n", comparison.TableName)
	}

	if err := a.ha.Ping(ctx); err != nil {
		fmt.Printf("⚠️  Home Assistant API: %v\n", err)
	} else {
		fmt.Printf("✅ Home Assistant API reachable (%s)\n", a.cfg.HomeAssistant.BaseURL)
	}

	if a.recorder.Available() {
		fmt.Printf("✅ Recorder database readable (%s)\n", a.cfg.Recorder.DBPath)
	} else {
		fmt.Printf("⚠️  Recorder database unavailable (%s)\n", a.cfg.Recorder.DBPath)
	}

	return nil
}

// maskPassword masks the password in the database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
