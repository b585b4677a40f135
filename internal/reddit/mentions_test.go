package reddit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit-alpha-agent/internal/types"
)

func TestExtractTickers(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"$NVDA to the moon, $nvda lower case ignored", []string{"NVDA"}},
		{"$AAPL and $TSLA, then $AAPL again", []string{"AAPL", "TSLA"}},
		{"single letter $T is too short", []string{}},
		{"$TOOLONG has six letters", []string{}},
		{"$GOOGL.", []string{"GOOGL"}},
		{"no tags here", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTickers(tt.text))
		})
	}
}

func TestExtractMentions(t *testing.T) {
	created := time.Date(2024, 5, 6, 23, 30, 0, 0, time.UTC)
	posts := []types.Post{
		{ID: "a1", Title: "$AMD earnings", Text: "loading up on $AMD and $NVDA", Score: 120, NumComments: 33, CreatedUTC: created},
		{ID: "a2", Title: "daily thread", Text: "nothing", Score: 5, CreatedUTC: created},
		{ID: "a3", Title: "$MSFT", Text: strings.Repeat("x", 600), Score: 1, CreatedUTC: created},
	}

	mentions := ExtractMentions(posts)
	require.Len(t, mentions, 3)

	assert.Equal(t, "AMD", mentions[0].Ticker)
	assert.Equal(t, "NVDA", mentions[1].Ticker)
	assert.Equal(t, "a1", mentions[1].PostID)
	assert.Equal(t, 120, mentions[0].Score)
	assert.Equal(t, 33, mentions[0].NumComments)
	assert.Equal(t, "2024-05-06", mentions[0].Date)
	assert.Equal(t, "$AMD earnings loading up on $AMD and $NVDA", mentions[0].Text)

	assert.Equal(t, "MSFT", mentions[2].Ticker)
	assert.Len(t, []rune(mentions[2].Text), 500)
}

func TestWindow(t *testing.T) {
	from, to := Window(time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 3, 23, 59, 59, 0, time.UTC), to)
}
