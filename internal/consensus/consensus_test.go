package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(f float64) *float64 { return &f }

func completed(id string, s *float64, verdict string) ProviderResult {
	return ProviderResult{ProviderID: id, Status: "completed", Score: s, Verdict: verdict}
}

func TestScoreBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  string
	}{
		{0, BucketAuthentic},
		{0.29, BucketAuthentic},
		{0.3, BucketUncertain},
		{0.69, BucketUncertain},
		{0.7, BucketLikelyAI},
		{1, BucketLikelyAI},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreBucket(tt.score), "score %v", tt.score)
	}
}

func TestBucket_DeclaredVerdictWins(t *testing.T) {
	t.Parallel()

	r := completed("hive", score(0.95), "authentic")
	assert.Equal(t, BucketAuthentic, r.Bucket())

	r = completed("hive", score(0.95), "something-new")
	assert.Equal(t, BucketLikelyAI, r.Bucket(), "unrecognised verdict falls back to score")

	r = completed("hive", nil, "ai-generated")
	assert.Equal(t, BucketLikelyAI, r.Bucket())
}

func TestCompleted(t *testing.T) {
	t.Parallel()

	assert.True(t, completed("a", score(0.1), "").Completed())
	assert.True(t, ProviderResult{Status: "COMPLETED", Verdict: "real"}.Completed())
	assert.False(t, ProviderResult{Status: "completed"}.Completed(), "no score and no verdict")
	assert.False(t, ProviderResult{Status: "pending", Score: score(0.9)}.Completed())
	assert.False(t, ProviderResult{Status: "failed", Verdict: "AI"}.Completed())
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		results    []ProviderResult
		verdict    string
		confidence string
		agreement  string
		score      *float64
	}{
		{
			name:       "single provider is unanimous",
			results:    []ProviderResult{completed("a", score(0.8), "")},
			verdict:    BucketLikelyAI,
			confidence: ConfidenceHigh,
			agreement:  AgreementUnanimous,
			score:      score(0.8),
		},
		{
			name: "all agree",
			results: []ProviderResult{
				completed("a", score(0.1), ""),
				completed("b", score(0.2), ""),
				completed("c", nil, "real"),
			},
			verdict:    BucketAuthentic,
			confidence: ConfidenceHigh,
			agreement:  AgreementUnanimous,
			score:      score(0.2),
		},
		{
			name: "two of three is a majority",
			results: []ProviderResult{
				completed("a", score(0.1), ""),
				completed("b", score(0.2), ""),
				completed("c", score(0.9), ""),
			},
			verdict:    BucketAuthentic,
			confidence: ConfidenceMedium,
			agreement:  AgreementMajority,
			score:      score(0.9),
		},
		{
			name: "tied majority picks the more severe bucket",
			results: []ProviderResult{
				completed("a", score(0.1), ""),
				completed("b", score(0.2), ""),
				completed("c", score(0.8), ""),
				completed("d", score(0.9), ""),
			},
			verdict:    BucketLikelyAI,
			confidence: ConfidenceMedium,
			agreement:  AgreementMajority,
			score:      score(0.9),
		},
		{
			name: "split takes the bucket of the max score",
			results: []ProviderResult{
				completed("a", score(0.1), ""),
				completed("b", score(0.5), ""),
				completed("c", score(0.75), ""),
			},
			verdict:    BucketLikelyAI,
			confidence: ConfidenceLow,
			agreement:  AgreementSplit,
			score:      score(0.75),
		},
		{
			name: "split without scores takes the most severe bucket",
			results: []ProviderResult{
				completed("a", nil, "real"),
				completed("b", nil, "uncertain"),
			},
			verdict:    BucketUncertain,
			confidence: ConfidenceLow,
			agreement:  AgreementSplit,
		},
		{
			name: "pending providers are ignored",
			results: []ProviderResult{
				{ProviderID: "a", Status: "pending"},
				completed("b", score(0.4), ""),
			},
			verdict:    BucketUncertain,
			confidence: ConfidenceHigh,
			agreement:  AgreementUnanimous,
			score:      score(0.4),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Aggregate(tt.results)
			require.NotNil(t, v)
			assert.Equal(t, tt.verdict, v.Verdict)
			assert.Equal(t, tt.confidence, v.Confidence)
			assert.Equal(t, tt.agreement, v.Agreement)
			assert.Equal(t, tt.score, v.Score)
		})
	}
}

func TestAggregate_NoneCompleted(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Aggregate(nil))
	assert.Nil(t, Aggregate([]ProviderResult{
		{ProviderID: "a", Status: "pending"},
		{ProviderID: "b", Status: "failed", Score: score(0.9)},
	}))
}

func TestAggregate_OrderIndependent(t *testing.T) {
	t.Parallel()

	sets := [][]ProviderResult{
		{
			completed("a", score(0.1), ""),
			completed("b", score(0.5), ""),
			completed("c", score(0.75), ""),
			{ProviderID: "d", Status: "pending"},
		},
		{
			completed("a", score(0.1), ""),
			completed("b", score(0.2), ""),
			completed("c", score(0.8), ""),
			completed("d", nil, "ai"),
		},
		{
			completed("a", nil, "real"),
			completed("b", nil, "uncertain"),
			completed("c", score(0.31), ""),
			completed("d", score(0.05), "likely_ai"),
		},
	}

	for i, set := range sets {
		want := Aggregate(set)
		permute(set, func(p []ProviderResult) {
			assert.Equal(t, want, Aggregate(p), "set %d, order %v", i, ids(p))
		})
	}
}

// permute calls fn with every ordering of rs (Heap's algorithm).
func permute(rs []ProviderResult, fn func([]ProviderResult)) {
	p := append([]ProviderResult(nil), rs...)
	var gen func(k int)
	gen = func(k int) {
		if k <= 1 {
			fn(append([]ProviderResult(nil), p...))
			return
		}
		gen(k - 1)
		for i := 0; i < k-1; i++ {
			if k%2 == 0 {
				p[i], p[k-1] = p[k-1], p[i]
			} else {
				p[0], p[k-1] = p[k-1], p[0]
			}
			gen(k - 1)
		}
	}
	gen(len(p))
}

func ids(rs []ProviderResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ProviderID
	}
	return out
}
