package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessStages(t *testing.T) {
	const input = "Check https://x.co/abc @bob #tag: 123 Terrorists are RUNNING!!!"

	cases := []struct {
		name string
		opts Options
		want string
	}{
		{"all stages", DefaultOptions(), "check terrorist run"},
		{"no stopwords no stemming", Options{
			Lowercase: true, StripURLs: true, StripMentions: true, StripPunctuation: true, StripDigits: true,
		}, "check terrorists are running"},
		{"keep digits", Options{
			Lowercase: true, StripURLs: true, StripMentions: true, StripPunctuation: true,
		}, "check 123 terrorists are running"},
		{"keep mentions", Options{
			Lowercase: true, StripURLs: true, StripPunctuation: true, StripDigits: true,
		}, "check bob tag terrorists are running"},
		{"nothing but whitespace collapse", Options{}, "Check https://x.co/abc @bob #tag: 123 Terrorists are RUNNING!!!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, New(tc.opts).Process(input))
		})
	}
}

func TestProcessUnicode(t *testing.T) {
	p := New(Options{Lowercase: true, StripPunctuation: true, StripDigits: true})
	assert.Equal(t, "fine café", p.Process("ﬁne — CAFÉ 42"))
}

func TestProcessDeterministicAndEmpty(t *testing.T) {
	p := New(DefaultOptions())
	assert.Equal(t, "", p.Process(""))
	assert.Equal(t, "", p.Process("   !!! 99 "))
	assert.Equal(t, "", p.Process("you are the"))
	a := p.Process("All the immigrants are criminals")
	assert.Equal(t, a, p.Process("All the immigrants are criminals"))
	assert.Equal(t, "immigr crimin", a)
}

func TestStopwords(t *testing.T) {
	assert.Len(t, stopwords, 179)
	assert.True(t, IsStopword("The"))
	assert.True(t, IsStopword("don"))
	assert.False(t, IsStopword("hate"))
}
