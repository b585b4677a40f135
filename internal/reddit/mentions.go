package reddit

import (
	"regexp"

	"reddit-alpha-agent/internal/metrics"
	"reddit-alpha-agent/internal/types"
)

// cashtag matches $ followed by 2-5 upper-case letters.
var cashtag = regexp.MustCompile(`\$([A-Z]{2,5})\b`)

const maxMentionText = 500

// ExtractTickers returns the distinct cashtag symbols in text, in order of
// first appearance.
func ExtractTickers(text string) []string {
	matches := cashtag.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}

// ExtractMentions emits one mention per distinct ticker per post.
func ExtractMentions(posts []types.Post) []types.Mention {
	var mentions []types.Mention
	for _, p := range posts {
		text := p.Title + " " + p.Text
		tickers := ExtractTickers(text)
		if len(tickers) == 0 {
			continue
		}
		snippet := truncate(text, maxMentionText)
		date := p.CreatedUTC.UTC().Format(types.DateLayout)
		for _, t := range tickers {
			mentions = append(mentions, types.Mention{
				Ticker:      t,
				Date:        date,
				Score:       p.Score,
				Text:        snippet,
				PostID:      p.ID,
				NumComments: p.NumComments,
			})
		}
	}
	metrics.MentionsExtracted.Add(float64(len(mentions)))
	return mentions
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
