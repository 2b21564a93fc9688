// Package consensus combines AI-classifier results for one piece of media
// into a single verdict.
//
// Aggregate is a pure function of the set of results it is given: providers
// finish at different times, so the verdict is recomputed from scratch each
// time and never depends on arrival order.
package consensus

import (
	"encoding/json"
	"strings"
)

// Verdict buckets, least to most severe.
const (
	BucketAuthentic = "AUTHENTIC"
	BucketUncertain = "UNCERTAIN"
	BucketLikelyAI  = "LIKELY_AI"
)

// Confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Agreement levels.
const (
	AgreementUnanimous = "unanimous"
	AgreementMajority  = "majority"
	AgreementSplit     = "split"
)

// StatusCompleted is the provider status that makes a result count.
const StatusCompleted = "completed"

// Score thresholds for bucketing a provider without a declared verdict.
const (
	UncertainThreshold = 0.3
	LikelyAIThreshold  = 0.7
)

var severity = map[string]int{
	BucketAuthentic: 0,
	BucketUncertain: 1,
	BucketLikelyAI:  2,
}

// Declared verdict spellings seen from providers.
var verdictAliases = map[string]string{
	"AUTHENTIC":    BucketAuthentic,
	"REAL":         BucketAuthentic,
	"HUMAN":        BucketAuthentic,
	"NOT_AI":       BucketAuthentic,
	"UNCERTAIN":    BucketUncertain,
	"UNKNOWN":      BucketUncertain,
	"POSSIBLY_AI":  BucketUncertain,
	"LIKELY_AI":    BucketLikelyAI,
	"AI":           BucketLikelyAI,
	"AI_GENERATED": BucketLikelyAI,
	"SYNTHETIC":    BucketLikelyAI,
	"FAKE":         BucketLikelyAI,
}

// ProviderResult is one classifier's opinion about one piece of content.
type ProviderResult struct {
	ProviderID string          `json:"provider"`
	Status     string          `json:"status"`
	Score      *float64        `json:"score,omitempty"`
	Verdict    string          `json:"verdict,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Completed reports whether the result takes part in aggregation.
func (r ProviderResult) Completed() bool {
	if !strings.EqualFold(strings.TrimSpace(r.Status), StatusCompleted) {
		return false
	}
	return r.Score != nil || strings.TrimSpace(r.Verdict) != ""
}

// Bucket returns the verdict bucket for a completed result.
// A recognised declared verdict wins over the score.
func (r ProviderResult) Bucket() string {
	if b, ok := NormalizeVerdict(r.Verdict); ok {
		return b
	}
	if r.Score != nil {
		return ScoreBucket(*r.Score)
	}
	return BucketUncertain
}

// NormalizeVerdict maps a provider's declared verdict onto a bucket.
func NormalizeVerdict(v string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(v))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	b, ok := verdictAliases[key]
	return b, ok
}

// ScoreBucket buckets a score in [0,1].
func ScoreBucket(score float64) string {
	switch {
	case score < UncertainThreshold:
		return BucketAuthentic
	case score < LikelyAIThreshold:
		return BucketUncertain
	default:
		return BucketLikelyAI
	}
}

// Verdict is the aggregated opinion over every completed provider.
type Verdict struct {
	Verdict    string         `json:"verdict"`
	Confidence string         `json:"confidence"`
	Agreement  string         `json:"agreement"`
	Score      *float64       `json:"score"`
	Completed  int            `json:"completed"`
	Buckets    map[string]int `json:"buckets"`
}

// Aggregate returns the consensus verdict, or nil when no provider has completed.
func Aggregate(results []ProviderResult) *Verdict {
	buckets := make(map[string]int)
	var maxScore *float64
	completed := 0

	for _, r := range results {
		if !r.Completed() {
			continue
		}
		completed++
		buckets[r.Bucket()]++
		if r.Score != nil && (maxScore == nil || *r.Score > *maxScore) {
			s := *r.Score
			maxScore = &s
		}
	}
	if completed == 0 {
		return nil
	}

	v := &Verdict{
		Score:     maxScore,
		Completed: completed,
		Buckets:   buckets,
	}

	top, topCount := leadingBucket(buckets)
	switch {
	case len(buckets) == 1:
		v.Verdict = top
		v.Confidence = ConfidenceHigh
		v.Agreement = AgreementUnanimous
	case completed >= 2 && topCount >= 2:
		v.Verdict = top
		v.Confidence = ConfidenceMedium
		v.Agreement = AgreementMajority
	default:
		v.Confidence = ConfidenceLow
		v.Agreement = AgreementSplit
		if maxScore != nil {
			v.Verdict = ScoreBucket(*maxScore)
		} else {
			v.Verdict = mostSevere(buckets)
		}
	}
	return v
}

// leadingBucket picks the bucket with the highest count, the more severe one on ties.
func leadingBucket(buckets map[string]int) (string, int) {
	best, bestCount := "", 0
	for b, n := range buckets {
		if n > bestCount || (n == bestCount && severity[b] > severity[best]) {
			best, bestCount = b, n
		}
	}
	return best, bestCount
}

func mostSevere(buckets map[string]int) string {
	best := ""
	for b := range buckets {
		if best == "" || severity[b] > severity[best] {
			best = b
		}
	}
	return best
}
