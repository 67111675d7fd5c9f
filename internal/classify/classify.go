// Package classify holds the per-turn intent heuristics. They are
// deliberately conservative: skipping an augmentation only loses recall,
// firing one only costs latency, so short messages, greetings and opinion
// statements never trigger search.
package classify

import (
	"regexp"
	"strings"
)

// Intent is the combined decision for one inbound message.
type Intent struct {
	WebSearch    bool
	WebQuery     string
	WebSite      string
	DocSearch    bool
	MemoryRecall bool
}

// Classify runs all three detectors over the raw message text.
func Classify(text string) Intent {
	web := DetectWebSearch(text)
	return Intent{
		WebSearch:    web.Search,
		WebQuery:     web.Query,
		WebSite:      web.Site,
		DocSearch:    DetectDocumentSearch(text),
		MemoryRecall: DetectMemoryRecall(text),
	}
}

type WebSearchDecision struct {
	Search bool
	Query  string
	Site   string
}

const (
	minSearchChars = 10
	minSearchWords = 4
	minRecallWords = 6
)

var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true, "sup": true,
	"good morning": true, "good afternoon": true, "good evening": true,
	"thanks": true, "thank you": true, "ok": true, "okay": true,
	"bye": true, "goodbye": true, "got it": true, "cool": true,
	"great": true, "nice": true, "sure": true, "yes": true, "no": true,
}

var opinionPrefixes = []string{
	"i think", "i feel", "i believe", "in my opinion", "i guess",
	"personally", "imo ", "imho ",
}

var knownSites = map[string]string{
	"youtube":       "youtube.com",
	"reddit":        "reddit.com",
	"wikipedia":     "wikipedia.org",
	"github":        "github.com",
	"stackoverflow": "stackoverflow.com",
	"twitter":       "twitter.com",
	"x":             "twitter.com",
	"amazon":        "amazon.com",
	"hackernews":    "news.ycombinator.com",
}

var (
	explicitSearchRe = regexp.MustCompile(`^(?:please\s+)?(?:search|google|find|look\s+up)(?:\s+for)?\s+(.+)$`)
	siteSearchRe     = regexp.MustCompile(`^(?:search|find|look\s+up)(?:\s+for)?\s+(.+?)\s+on\s+(\w+)\s*\??$`)
	priceRe          = regexp.MustCompile(`price\s+(?:of|for)\s+(.+)$`)
	currentInfoRe    = regexp.MustCompile(`\b(?:latest|current|today'?s?|right\s+now|this\s+(?:week|month|year)|happening)\b`)
	newsRe           = regexp.MustCompile(`\bnews\b(?:\s+(?:about|on|regarding)\s+(.+))?`)
	questionStartRe  = regexp.MustCompile(`^(?:what|who|when|where|why|how|which|is|are|was|were|do|does|did|can|could|should|would|will)\b`)
	questionPrefixRe = regexp.MustCompile(`^(?:what'?s|what\s+is|what\s+are|who\s+is|who'?s|how\s+much\s+is|how\s+much\s+does|when\s+is|where\s+is|tell\s+me)\s+`)
	infoRequestRe    = regexp.MustCompile(`^(?:tell\s+me\s+about|explain|describe|summarize|give\s+me\s+(?:an?\s+)?(?:overview|summary)|according\s+to)\b`)
	personalRe       = regexp.MustCompile(`\b(?:my\s+name\s+is|call\s+me|i\s+am\s+from|i'?m\s+from|i\s+live\s+in|i\s+work\s+(?:at|as)|i\s+like|i\s+love|i\s+hate|i\s+prefer|my\s+favorite|my\s+favourite|my\s+birthday|remember\s+(?:that|this|me))\b`)
)

// DetectWebSearch recognizes four non-overlapping intent shapes, tried in
// order with first match winning: explicit search commands, site-scoped
// searches, current-information questions, and news requests.
func DetectWebSearch(text string) WebSearchDecision {
	normalized := normalize(text)
	if excluded(normalized) {
		return WebSearchDecision{}
	}

	// (b) before (a): "search X on youtube" also matches the explicit form.
	if m := siteSearchRe.FindStringSubmatch(normalized); m != nil {
		if domain, ok := knownSites[m[2]]; ok {
			return WebSearchDecision{Search: true, Query: cleanQuery(m[1]), Site: domain}
		}
	}
	if m := explicitSearchRe.FindStringSubmatch(normalized); m != nil {
		return WebSearchDecision{Search: true, Query: cleanQuery(m[1])}
	}
	if isQuestion(normalized) && (currentInfoRe.MatchString(normalized) || priceRe.MatchString(normalized)) {
		return WebSearchDecision{Search: true, Query: extractQuestionQuery(normalized)}
	}
	if m := newsRe.FindStringSubmatch(normalized); m != nil && isNewsRequest(normalized) {
		query := "latest news"
		if len(m) > 1 && m[1] != "" {
			query = cleanQuery(m[1]) + " news"
		}
		return WebSearchDecision{Search: true, Query: query}
	}
	return WebSearchDecision{}
}

// DetectDocumentSearch triggers on question-shaped text or information
// requests, and defaults to searching once a message is long enough to
// plausibly reference uploaded material.
func DetectDocumentSearch(text string) bool {
	normalized := normalize(text)
	if excluded(normalized) {
		return false
	}
	if isQuestion(normalized) || infoRequestRe.MatchString(normalized) {
		return true
	}
	return wordCount(normalized) >= 8
}

// DetectMemoryRecall fires unconditionally on personal-statement patterns so
// that already-stored facts are surfaced instead of re-elicited, and
// otherwise on questions or sufficiently long messages.
func DetectMemoryRecall(text string) bool {
	normalized := normalize(text)
	if personalRe.MatchString(normalized) {
		return true
	}
	if isGreeting(normalized) {
		return false
	}
	if isQuestion(normalized) {
		return true
	}
	return wordCount(normalized) >= minRecallWords
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func excluded(normalized string) bool {
	if len(normalized) < minSearchChars {
		return true
	}
	if isGreeting(normalized) {
		return true
	}
	for _, prefix := range opinionPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return wordCount(normalized) < minSearchWords && !strings.HasSuffix(normalized, "?")
}

func isGreeting(normalized string) bool {
	return greetings[strings.TrimRight(normalized, "!. ")]
}

// isNewsRequest keeps mentions like "I watched the news yesterday" from
// firing: the message must actually ask for news.
func isNewsRequest(normalized string) bool {
	return isQuestion(normalized) ||
		strings.HasPrefix(normalized, "show me") ||
		strings.HasPrefix(normalized, "give me") ||
		strings.HasPrefix(normalized, "any news")
}

func isQuestion(normalized string) bool {
	return strings.HasSuffix(strings.TrimSpace(normalized), "?") || questionStartRe.MatchString(normalized)
}

func wordCount(normalized string) int {
	return len(strings.Fields(normalized))
}

// extractQuestionQuery turns an information question into search terms:
// "what's the latest price of gold?" becomes "gold price".
func extractQuestionQuery(normalized string) string {
	q := strings.TrimRight(normalized, "?! .")
	if m := priceRe.FindStringSubmatch(q); m != nil {
		return cleanQuery(m[1]) + " price"
	}
	q = questionPrefixRe.ReplaceAllString(q, "")
	q = currentInfoRe.ReplaceAllString(q, "")
	fields := strings.Fields(q)
	kept := fields[:0]
	for _, f := range fields {
		if f == "the" || f == "a" || f == "an" || f == "of" || f == "in" || f == "is" {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func cleanQuery(raw string) string {
	return strings.TrimSpace(strings.TrimRight(raw, "?! ."))
}
