package comparison

import (
	"math"

	"github.com/wonny/sfmlstats/internal/contracts"
)

// =============================================================================
// Accuracy Scorer
// =============================================================================

// ComputeAccuracy 실측 대비 예측 정확도 (%)
// actual 을 분모로 하는 상대 오차. 둘 중 하나라도 nil 이면 nil.
func ComputeAccuracy(actual, forecast *float64) *float64 {
	if actual == nil || forecast == nil {
		return nil
	}

	a, f := *actual, *forecast

	// nothing produced, nothing predicted
	if a <= 0 && f <= 0 {
		return contracts.Float(100)
	}
	if a <= 0 || f <= 0 {
		return contracts.Float(0)
	}

	acc := 100 - math.Abs((a-f)/a)*100
	acc = math.Max(0, math.Min(100, acc))

	return contracts.Float(math.Round(acc*10) / 10)
}

// SelectBestSource 정확도가 가장 높은 소스 선택
// 0 이하 또는 nil 은 후보에서 제외, 동점이면 SourceOrder 앞쪽이 이긴다.
func SelectBestSource(sfml, ext1, ext2 *float64) *contracts.SourceTag {
	accs := [...]*float64{sfml, ext1, ext2}

	var best *contracts.SourceTag
	var bestAcc float64
	for i, acc := range accs {
		if acc == nil || *acc <= 0 {
			continue
		}
		if best == nil || *acc > bestAcc {
			best = contracts.Source(contracts.SourceOrder[i])
			bestAcc = *acc
		}
	}

	return best
}

// Score 세 소스의 정확도와 best source 를 한 번에 계산
type Score struct {
	SFMLAccuracy      *float64
	External1Accuracy *float64
	External2Accuracy *float64
	BestSource        *contracts.SourceTag
}

// ScoreDay computes all three accuracies against actual and picks the best source
func ScoreDay(actual, sfml, ext1, ext2 *float64) Score {
	s := Score{
		SFMLAccuracy:      ComputeAccuracy(actual, sfml),
		External1Accuracy: ComputeAccuracy(actual, ext1),
		External2Accuracy: ComputeAccuracy(actual, ext2),
	}
	s.BestSource = SelectBestSource(s.SFMLAccuracy, s.External1Accuracy, s.External2Accuracy)
	return s
}
