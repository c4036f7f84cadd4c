package home

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myformhq/myform/sys"
)

func TestTotalSteps(t *testing.T) {
	tests := []struct {
		questions int
		want      int
	}{
		{1, 1},
		{4, 1},
		{5, 1},
		{6, 2},
		{10, 2},
		{11, 3},
		{25, 5},
	}

	for _, tt := range tests {
		if got := totalSteps(tt.questions); got != tt.want {
			t.Errorf("totalSteps(%d) = %d, want %d", tt.questions, got, tt.want)
		}
	}
}

func TestBuildStepModal(t *testing.T) {
	form := &sys.Form{
		ID:      "f1",
		GuildID: "g1",
		Title:   "Candidature",
	}
	for i := 0; i < 7; i++ {
		form.Questions = append(form.Questions, sys.Question{
			Text:  strings.Repeat("q", 60), // over the 45-char label cap
			Style: sys.QuestionStyleShort,
		})
	}

	page1 := buildStepModal(form, 1, "tok")
	assert.Equal(t, "form_page:f1:1:tok", page1.CustomID)
	assert.Contains(t, page1.Title, "(1/2)")
	assert.Len(t, page1.Components, 5, "first page carries exactly five questions")

	page2 := buildStepModal(form, 2, "tok")
	assert.Equal(t, "form_page:f1:2:tok", page2.CustomID)
	assert.Len(t, page2.Components, 2, "last page carries the remainder")
}

func TestBufferKey(t *testing.T) {
	assert.Equal(t, "g:f:u", bufferKey("g", "f", "u"))
	assert.NotEqual(t, bufferKey("g", "f1", "u"), bufferKey("g", "f", "1u"))
}

func TestParseQuestionLines(t *testing.T) {
	raw := "Quel âge as-tu ?\np: Pourquoi veux-tu nous rejoindre ?\n\n  \np:\nDernière question"
	questions, err := parseQuestionLines(raw)
	require.NoError(t, err)
	require.Len(t, questions, 3)

	assert.Equal(t, sys.Question{Text: "Quel âge as-tu ?", Style: sys.QuestionStyleShort}, questions[0])
	assert.Equal(t, sys.Question{Text: "Pourquoi veux-tu nous rejoindre ?", Style: sys.QuestionStyleParagraph}, questions[1])
	assert.Equal(t, sys.Question{Text: "Dernière question", Style: sys.QuestionStyleShort}, questions[2])
}

func TestParseQuestionLinesLengthLimit(t *testing.T) {
	atLimit, err := parseQuestionLines(strings.Repeat("é", 100))
	require.NoError(t, err, "100 runes are allowed, multibyte included")
	require.Len(t, atLimit, 1)

	_, err = parseQuestionLines("Courte\n" + strings.Repeat("q", 101))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Question 2")

	// The paragraph marker does not count against the question text.
	_, err = parseQuestionLines("p: " + strings.Repeat("q", 100))
	require.NoError(t, err)
}

func TestQuestionLinesRoundTrip(t *testing.T) {
	questions := []sys.Question{
		{Text: "Question courte", Style: sys.QuestionStyleShort},
		{Text: "Question longue", Style: sys.QuestionStyleParagraph},
	}
	parsed, err := parseQuestionLines(questionLines(questions))
	require.NoError(t, err)
	assert.Equal(t, questions, parsed)
}

func TestSweepSubmissionBuffers(t *testing.T) {
	t.Cleanup(func() {
		submissions.Range(func(key, _ any) bool {
			submissions.Delete(key)
			return true
		})
	})

	stale := &submissionBuffer{token: "old", lastActive: time.Now().Add(-time.Hour)}
	fresh := &submissionBuffer{token: "new", lastActive: time.Now()}
	submissions.Store(bufferKey("g1", "f1", "u1"), stale)
	submissions.Store(bufferKey("g1", "f1", "u2"), fresh)

	removed := sweepSubmissionBuffers(time.Now().Add(-bufferTTL))
	assert.Equal(t, 1, removed)

	_, staleKept := submissions.Load(bufferKey("g1", "f1", "u1"))
	assert.False(t, staleKept, "abandoned buffer must be dropped")
	_, freshKept := submissions.Load(bufferKey("g1", "f1", "u2"))
	assert.True(t, freshKept, "active buffer must survive the sweep")
}

func TestNewGiftCodeFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := NewGiftCode()
		require.Len(t, code, 19)

		groups := strings.Split(code, "-")
		require.Len(t, groups, 4)
		for _, g := range groups {
			require.Len(t, g, 4)
			for _, c := range g {
				assert.Contains(t, giftCodeAlphabet, string(c))
			}
		}
		// No lookalike characters in the alphabet.
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "1")

		assert.False(t, seen[code], "gift codes must not repeat")
		seen[code] = true
	}
}
