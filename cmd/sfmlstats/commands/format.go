package commands

import (
	"fmt"
	"time"

	"github.com/wonny/sfmlstats/internal/collector"
	"github.com/wonny/sfmlstats/internal/scheduler"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string, at time.Time) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  %s\n", title)
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Started   : %s\n", at.Format("2006-01-02 15:04:05 MST"))
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintPassResult prints the outcome of one collection pass
func PrintPassResult(r collector.PassResult) {
	fmt.Println()
	if b := r.Backfill; b != nil {
		fmt.Printf("  Days      : %d\n", b.Days)
		fmt.Printf("  Written   : %d\n", b.Written)
		fmt.Printf("  Skipped   : %d (complete)\n", b.Skipped)
		fmt.Printf("  Empty     : %d (no data)\n", b.Empty)
		fmt.Printf("  Failed    : %d\n", b.Failed)
	}
	if r.Repaired != nil {
		fmt.Printf("  Repaired  : %d\n", *r.Repaired)
	}

	if r.OK {
		fmt.Printf("✅ %s pass completed in %.2fs\n", r.Pass, r.Duration.Seconds())
	} else {
		fmt.Printf("❌ %s pass failed after %.2fs\n", r.Pass, r.Duration.Seconds())
	}
}

func printJobs(infos []scheduler.JobInfo) {
	fmt.Println("\nRegistered jobs:")
	for _, info := range infos {
		next := "-"
		if !info.NextRun.IsZero() {
			next = info.NextRun.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  - %-20s %-16s next %s  %s\n", info.Name, info.Schedule, next, info.Description)
	}
}
