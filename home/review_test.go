package home

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/myformhq/myform/sys"
)

func TestReviewFooter(t *testing.T) {
	tests := []struct {
		name       string
		kind       string
		customMsg  string
		showStatus bool
		want       string
	}{
		{"accept without status line", sys.AIKindAccept, "", false, "✅ Acceptée"},
		{"reject without status line", sys.AIKindReject, "", false, "❌ Refusée"},
		{"custom message hidden without status line", sys.AIKindAccept, "Bravo", false, "✅ Acceptée"},
		{"accept with status line", sys.AIKindAccept, "", true, "✅ Acceptée par <@mod1>"},
		{"reject with status line and reason", sys.AIKindReject, "Trop jeune", true, "❌ Refusée par <@mod1> — Trop jeune"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reviewFooter(tt.kind, "mod1", tt.customMsg, tt.showStatus)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReviewModalReply(t *testing.T) {
	// A committed decision notes the fallback when generation failed.
	assert.Equal(t, MsgReviewAccepted+"\n"+MsgReviewAIFallback, reviewModalReply(MsgReviewAccepted, true))
	assert.Equal(t, MsgReviewRejected+"\n"+MsgReviewAIFallback, reviewModalReply(MsgReviewRejected, true))

	// Without a failure the reply is the commit result alone.
	assert.Equal(t, MsgReviewAccepted, reviewModalReply(MsgReviewAccepted, false))

	// Replies that carry no new decision stay as-is even after a failed
	// generation; the user must not be told a message was substituted.
	assert.Equal(t, MsgReviewAlreadyDone, reviewModalReply(MsgReviewAlreadyDone, true))
	assert.Equal(t, MsgFormStoreError, reviewModalReply(MsgFormStoreError, true))
}
