package comparison

import (
	"math"

	"github.com/wonny/sfmlstats/internal/contracts"
)

// SourceSummary 소스별 누적 통계
type SourceSummary struct {
	Source           contracts.SourceTag `json:"source"`
	Name             string              `json:"name"`
	Samples          int                 `json:"samples"`
	MeanAccuracy     *float64            `json:"mean_accuracy_percent"`
	Wins             int                 `json:"wins"`
	ForecastTotalKWh float64             `json:"forecast_total_kwh"`
}

// Summary 기간 전체 비교 요약
type Summary struct {
	From           string               `json:"from"`
	To             string               `json:"to"`
	Days           int                  `json:"days"`
	ActualTotalKWh float64              `json:"actual_total_kwh"`
	Sources        []SourceSummary      `json:"sources"`
	Leader         *contracts.SourceTag `json:"leader"`
}

// Summarize aggregates records per source. names maps a source tag to its
// display name; sources missing from names keep the tag as name.
// The leader is the source with the highest mean accuracy, ties in SourceOrder.
func Summarize(records []contracts.DayRecord, names map[contracts.SourceTag]string) Summary {
	s := Summary{Days: len(records)}
	if len(records) > 0 {
		s.From = records[0].Date
		s.To = records[len(records)-1].Date
	}

	type acc struct {
		sum     float64
		samples int
		wins    int
		total   float64
	}
	stats := make(map[contracts.SourceTag]*acc, len(contracts.SourceOrder))
	for _, tag := range contracts.SourceOrder {
		stats[tag] = &acc{}
	}

	for _, rec := range records {
		if rec.Date < s.From {
			s.From = rec.Date
		}
		if rec.Date > s.To {
			s.To = rec.Date
		}
		if rec.ActualKWh != nil {
			s.ActualTotalKWh += *rec.ActualKWh
		}

		pairs := [...]struct {
			tag      contracts.SourceTag
			forecast *float64
			accuracy *float64
		}{
			{contracts.SourceSFML, rec.SFMLForecastKWh, rec.SFMLAccuracyPercent},
			{contracts.SourceExternal1, rec.External1KWh, rec.External1AccuracyPercent},
			{contracts.SourceExternal2, rec.External2KWh, rec.External2AccuracyPercent},
		}
		for _, p := range pairs {
			a := stats[p.tag]
			if p.forecast != nil {
				a.total += *p.forecast
			}
			if p.accuracy != nil {
				a.sum += *p.accuracy
				a.samples++
			}
		}

		if rec.BestSource != nil {
			if a, ok := stats[*rec.BestSource]; ok {
				a.wins++
			}
		}
	}

	var leaderMean float64
	for _, tag := range contracts.SourceOrder {
		a := stats[tag]
		name := names[tag]
		if name == "" {
			name = string(tag)
		}

		ss := SourceSummary{
			Source:           tag,
			Name:             name,
			Samples:          a.samples,
			Wins:             a.wins,
			ForecastTotalKWh: round2(a.total),
		}
		if a.samples > 0 {
			mean := math.Round(a.sum/float64(a.samples)*10) / 10
			ss.MeanAccuracy = &mean
			if s.Leader == nil || mean > leaderMean {
				s.Leader = contracts.Source(tag)
				leaderMean = mean
			}
		}
		s.Sources = append(s.Sources, ss)
	}
	s.ActualTotalKWh = round2(s.ActualTotalKWh)

	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
