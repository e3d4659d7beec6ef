package collector

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Pass 수집 단계 이름
type Pass string

const (
	PassMorning    Pass = "morning"
	PassEvening    Pass = "evening"
	PassHistorical Pass = "historical"
	PassRepair     Pass = "repair"
)

// Passes lists every pass in the order they run during a day
var Passes = []Pass{PassMorning, PassEvening, PassHistorical, PassRepair}

// ParsePass validates a pass name
func ParsePass(s string) (Pass, error) {
	p := Pass(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Passes {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown pass %q (want morning, evening, historical or repair)", s)
}

// PassResult 한 번의 pass 실행 결과
type PassResult struct {
	Pass     Pass            `json:"pass"`
	OK       bool            `json:"ok"`
	Backfill *BackfillResult `json:"backfill,omitempty"`
	Repaired *int            `json:"repaired,omitempty"`
	Duration time.Duration   `json:"duration_ns"`
}

// Run executes one pass. days applies to historical and repair only.
func (c *Collector) Run(ctx context.Context, pass Pass, days int) (PassResult, error) {
	start := time.Now()
	result := PassResult{Pass: pass}

	switch pass {
	case PassMorning:
		result.OK = c.CollectMorning(ctx)
	case PassEvening:
		result.OK = c.CollectEvening(ctx)
	case PassHistorical:
		backfill, ok := c.CollectHistorical(ctx, days)
		result.OK = ok
		result.Backfill = &backfill
	case PassRepair:
		n := c.RepairMissingForecasts(ctx, days)
		result.OK = true
		result.Repaired = &n
	default:
		return result, fmt.Errorf("unknown pass %q", pass)
	}

	result.Duration = time.Since(start)
	return result, nil
}
