package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/hatescan/internal/lexicon"
	"github.com/straja-ai/hatescan/internal/rules"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	store := lexicon.NewStore()
	_, _, err := store.Replace([]string{"fuck", "idiot", "moron", "you are useless"})
	require.NoError(t, err)
	return New(rules.Default(), store)
}

func TestDetect(t *testing.T) {
	d := newTestDetector(t)

	cases := []struct {
		name     string
		text     string
		wantHate bool
		wantConf float64
		wantSafe string
		evidence string
	}{
		{name: "safe context", text: "I love nature, it's beautiful", wantSafe: "i_love"},
		{name: "religious generalisation", text: "All Muslims are terrorists", wantHate: true, wantConf: 0.85, evidence: "rule:all_named_faith"},
		{name: "single profanity", text: "fuck", wantHate: true, wantConf: 0.9, evidence: "word:fuck"},
		{name: "lexicon phrase", text: "Honestly, you are useless.", wantHate: true, wantConf: 0.95, evidence: "phrase:you are useless"},
		{name: "constructive criticism", text: "Your work needs improvement"},
		{name: "exclusion", text: "Go back to where you came from", wantHate: true, wantConf: 0.8, evidence: "rule:go_back"},
		{name: "threat to elderly", text: "Old people should just die", wantHate: true, wantConf: 0.9, evidence: "rule:old_people_should_die"},
		{name: "migrant generalisation", text: "Immigrants are all rapists", wantHate: true, wantConf: 0.85, evidence: "rule:migrants_insult"},
		{name: "threat of violence", text: "I'll kill you", wantHate: true, wantConf: 0.9, evidence: "rule:threat_of_violence"},
		{name: "singular body shaming", text: "Fat women are lazy", wantHate: true, wantConf: 0.85, evidence: "rule:fat_people_insult"},
		{name: "empty", text: "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := d.Detect(tc.text)
			assert.Equal(t, tc.wantHate, res.Hate)
			assert.InDelta(t, tc.wantConf, res.Confidence, 1e-9)
			assert.Equal(t, tc.wantSafe, res.SafeContext)
			if tc.evidence != "" {
				assert.Contains(t, res.Matches, tc.evidence)
			}
		})
	}
}

func TestSafeContextOverridesLexiconAndPatterns(t *testing.T) {
	d := newTestDetector(t)
	res := d.Detect("I love how all muslims are terrorists, fuck")
	assert.False(t, res.Hate)
	assert.Zero(t, res.Confidence)
	assert.NotEmpty(t, res.SafeContext)
	assert.Empty(t, res.Matches)
}

func TestBelowThresholdIsNegative(t *testing.T) {
	set, err := rules.Parse([]byte(`
patterns:
  - {name: mild, pattern: '\bmeh\b', weight: 0.5}
`))
	require.NoError(t, err)
	d := New(set, nil)

	res := d.Detect("meh")
	assert.False(t, res.Hate)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, []string{"rule:mild"}, res.Matches)
}

func TestConfidenceNonZeroIffHate(t *testing.T) {
	d := newTestDetector(t)
	inputs := []string{
		"", "hello there", "fuck", "idiot moron", "women belong in the kitchen",
		"thank you, you are useless", "your kind should leave", "all asian people are bad",
		"disabled people are a burden", "rich people are greedy", "nice weather today",
	}
	for _, in := range inputs {
		res := d.Detect(in)
		assert.Equal(t, res.Hate, res.Confidence > 0, "input %q", in)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
	}
}

func TestDetectSeesLexiconReload(t *testing.T) {
	d := newTestDetector(t)
	assert.False(t, d.Detect("nincompoop").Hate)

	_, _, err := d.Lexicon().Replace([]string{"nincompoop"})
	require.NoError(t, err)
	assert.True(t, d.Detect("nincompoop").Hate)
	assert.False(t, d.Detect("fuck").Hate)
}
