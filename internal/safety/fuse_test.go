package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuseDecisionTable(t *testing.T) {
	cases := []struct {
		name     string
		rule     Verdict
		model    Verdict
		wantHate bool
		wantConf float64
	}{
		{
			name:  "rule negative overrides model positive",
			rule:  Negative(SourceRules),
			model: Verdict{Hate: true, Confidence: 0.99, Source: SourceModel},
		},
		{
			name:  "rule negative with abstaining model",
			rule:  Negative(SourceRules),
			model: Abstain(SourceModel),
		},
		{
			name:     "both agree takes stronger rule",
			rule:     Verdict{Hate: true, Confidence: 0.85, Source: SourceRules},
			model:    Verdict{Hate: true, Confidence: 0.6, Source: SourceModel},
			wantHate: true,
			wantConf: 0.85,
		},
		{
			name:     "both agree takes stronger model",
			rule:     Verdict{Hate: true, Confidence: 0.7, Source: SourceRules},
			model:    Verdict{Hate: true, Confidence: 0.93, Source: SourceModel},
			wantHate: true,
			wantConf: 0.93,
		},
		{
			name:     "rule only keeps rule confidence",
			rule:     Verdict{Hate: true, Confidence: 0.8, Source: SourceRules},
			model:    Abstain(SourceModel),
			wantHate: true,
			wantConf: 0.8,
		},
		{
			name:  "rule only below threshold",
			rule:  Verdict{Hate: true, Confidence: 0.5, Source: SourceRules},
			model: Negative(SourceModel),
		},
		{
			name:     "model only above strict bar is penalised",
			rule:     Verdict{Hate: false, Confidence: 0.4, Source: SourceRules},
			model:    Verdict{Hate: true, Confidence: 0.9, Source: SourceModel},
			wantHate: true,
			wantConf: 0.9 * ModelOnlyPenalty,
		},
		{
			name:  "model only below strict bar",
			rule:  Verdict{Hate: false, Confidence: 0.4, Source: SourceRules},
			model: Verdict{Hate: true, Confidence: 0.74, Source: SourceModel},
		},
		{
			name:  "both negative with stray rule confidence",
			rule:  Verdict{Hate: false, Confidence: 0.4, Source: SourceRules},
			model: Negative(SourceModel),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Fuse(tc.rule, tc.model)
			assert.Equal(t, tc.wantHate, got.Hate)
			assert.InDelta(t, tc.wantConf, got.Confidence, 1e-9)
			assert.Equal(t, SourceFused, got.Source)
			if !got.Hate {
				assert.Zero(t, got.Confidence)
			}
		})
	}
}

func TestRound3(t *testing.T) {
	cases := map[float64]float64{
		0.12345: 0.123,
		0.9996:  1,
		1.7:     1,
		-0.2:    0,
		0.7:     0.7,
		0.8 * 0.95: 0.76,
	}
	for in, want := range cases {
		assert.Equal(t, want, Round3(in), "input %v", in)
	}
}

func TestAbstainIsNegative(t *testing.T) {
	v := Abstain(SourceModel)
	assert.False(t, v.Hate)
	assert.Zero(t, v.Confidence)
	assert.True(t, v.Abstained)
}
