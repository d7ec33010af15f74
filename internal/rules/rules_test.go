package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableCompiles(t *testing.T) {
	s := Default()
	assert.Equal(t, 0.7, s.Threshold)
	assert.Equal(t, 0.9, s.LexiconWordWeight)
	assert.Equal(t, 0.95, s.LexiconPhraseWeight)
	assert.NotEmpty(t, s.Patterns)
	assert.NotEmpty(t, s.SafeContexts)
	for _, p := range s.Patterns {
		assert.Greater(t, p.Weight, 0.0, p.Name)
		assert.LessOrEqual(t, p.Weight, 1.0, p.Name)
	}
}

func TestDefaultPatternsInIsolation(t *testing.T) {
	byName := make(map[string]PatternRule)
	for _, p := range Default().Patterns {
		byName[p.Name] = p
	}

	cases := []struct {
		rule  string
		text  string
		match bool
	}{
		{"all_named_faith", "all muslims are terrorists", true},
		{"all_group_people_are", "all asian people are bad drivers", true},
		{"every_group_member_is", "every immigrant person is a thief", true},
		{"old_people_should_die", "old people should just die", true},
		{"women_belong_in_kitchen", "women belong in the kitchen", true},
		{"disabled_people_cannot_contribute", "disabled people can't work", true},
		{"go_back", "go back to where you came from", true},
		{"dont_belong_here", "you don't belong here", true},
		{"your_kind", "your kind doesn't deserve this", true},
		{"dehumanising_label", "they are animals", true},
		{"dehumanising_label", "the animalistic look", false},
		{"go_back", "i will go home", false},
		{"all_named_faith", "all of us are friends", false},

		// singular and gendered phrasings
		{"fat_people_insult", "fat women are lazy", true},
		{"fat_people_insult", "obese person is disgusting", true},
		{"thin_people_insult", "thin person is weak", true},
		{"old_people_useless", "old person is useless", true},
		{"disabled_people_cannot_contribute", "disabled person cannot work", true},
		{"disabled_people_burden", "disabled people are burden", true},
		{"poor_people_insult", "poor person is lazy", true},

		{"ethnic_group_insult", "black people are all criminals", true},
		{"ethnic_group_insult", "mexican person is lazy", true},
		{"ethnic_group_insult", "asian people are great cooks", false},
		{"migrants_insult", "immigrants are all rapists", true},
		{"migrants_insult", "refugees are a plague", true},
		{"migrants_insult", "refugees are welcome here", false},
		{"pure_race", "keep the white race pure or lose the pure race", true},
		{"pure_race", "a pure racing engine", false},
		{"threat_of_violence", "i'll kill you", true},
		{"threat_of_violence", "we will hang them all", true},
		{"threat_of_violence", "i will kill time at the mall", false},
		{"deserve_to_die", "they deserve to be shot", true},
		{"deserve_to_die", "she deserves to win", false},
		{"exterminate_group", "exterminate all of them", true},
		{"exterminate_group", "wipe out those vermin", true},
		{"exterminate_group", "wipe out the table", false},
	}
	for _, tc := range cases {
		t.Run(tc.rule+"/"+tc.text, func(t *testing.T) {
			p, ok := byName[tc.rule]
			require.True(t, ok, "rule %s missing", tc.rule)
			assert.Equal(t, tc.match, p.Pattern.MatchString(tc.text))
		})
	}
}

func TestSafeContexts(t *testing.T) {
	s := Default()
	matches := func(text string) bool {
		for _, sc := range s.SafeContexts {
			if sc.Pattern.MatchString(text) {
				return true
			}
		}
		return false
	}
	assert.True(t, matches("i love nature, it's beautiful"))
	assert.True(t, matches("we stand against hate"))
	assert.True(t, matches("anti-hate rally"))
	assert.False(t, matches("your work needs improvement"))
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad regex",
			yaml:    "patterns:\n  - {name: broken, pattern: '(unclosed', weight: 0.8}\n",
			wantErr: "patterns[broken]",
		},
		{
			name:    "weight out of range",
			yaml:    "patterns:\n  - {name: heavy, pattern: 'x', weight: 1.5}\n",
			wantErr: "weight must be in (0,1]",
		},
		{
			name:    "zero weight",
			yaml:    "patterns:\n  - {name: light, pattern: 'x', weight: 0}\n",
			wantErr: "weight must be in (0,1]",
		},
		{
			name:    "duplicate name",
			yaml:    "patterns:\n  - {name: a, pattern: 'x', weight: 0.8}\n  - {name: a, pattern: 'y', weight: 0.8}\n",
			wantErr: "duplicate name",
		},
		{
			name:    "empty safe pattern",
			yaml:    "safe_contexts:\n  - {name: blank, pattern: ''}\n",
			wantErr: "pattern is empty",
		},
		{
			name:    "threshold out of range",
			yaml:    "threshold: 2\n",
			wantErr: "threshold",
		},
		{
			name:    "malformed yaml",
			yaml:    "patterns: [\n",
			wantErr: "parse rules",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
threshold: 0.6
patterns:
  - {name: custom, target: general, pattern: '\bbadword\b', weight: 0.65}
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, s.Threshold)
	require.Len(t, s.Patterns, 1)
	assert.Equal(t, "custom", s.Patterns[0].Name)
	assert.Empty(t, s.SafeContexts)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, len(Default().Patterns), len(def.Patterns))
}
