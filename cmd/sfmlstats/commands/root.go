package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sfmlstats",
	Short: "SFML Stats - 태양광 발전 예측 비교 수집기",
	Long: `SFML Stats Unified CLI

내부(SFML) 예측과 외부 예측 2종을 실제 발전량과 비교해
일별 정확도와 최우수 소스를 기록합니다.

Usage:
  go run ./cmd/sfmlstats [command]

Examples:
  go run ./cmd/sfmlstats migrate
  go run ./cmd/sfmlstats api --with-scheduler
  go run ./cmd/sfmlstats collect historical --days 14
  go run ./cmd/sfmlstats scheduler start
  go run ./cmd/sfmlstats test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (LOG_LEVEL=debug)")
}
