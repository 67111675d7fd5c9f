package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyGreeting(t *testing.T) {
	for _, text := range []string{"hi", "Hello!", "thanks", "ok"} {
		intent := Classify(text)
		require.False(t, intent.WebSearch, "web search should not fire for %q", text)
		require.False(t, intent.DocSearch, "doc search should not fire for %q", text)
		require.False(t, intent.MemoryRecall, "memory recall should not fire for %q", text)
	}
}

func TestClassifyPersonalStatement(t *testing.T) {
	intent := Classify("My name is Sam, remember that")
	require.True(t, intent.MemoryRecall)
	require.False(t, intent.WebSearch)
	require.False(t, intent.DocSearch)
}

func TestMemoryRecallFiresOnShortPersonalStatement(t *testing.T) {
	require.True(t, DetectMemoryRecall("Call me Maverick"))
	require.True(t, DetectMemoryRecall("I love spicy food"))
	require.False(t, DetectMemoryRecall("hi"))
}

func TestMemoryRecallOnQuestion(t *testing.T) {
	require.True(t, DetectMemoryRecall("What restaurants did I mention?"))
}

func TestWebSearchCurrentInfoQuestion(t *testing.T) {
	d := DetectWebSearch("What's the latest price of gold?")
	require.True(t, d.Search)
	require.Contains(t, d.Query, "gold")
	require.NotContains(t, d.Query, "latest price of")
}

func TestWebSearchExplicitCommand(t *testing.T) {
	d := DetectWebSearch("search golang generics tutorial")
	require.True(t, d.Search)
	require.Equal(t, "golang generics tutorial", d.Query)
	require.Empty(t, d.Site)
}

func TestWebSearchSiteScoped(t *testing.T) {
	d := DetectWebSearch("look up react hooks on youtube")
	require.True(t, d.Search)
	require.Equal(t, "react hooks", d.Query)
	require.Equal(t, "youtube.com", d.Site)
}

func TestWebSearchUnknownSiteFallsThrough(t *testing.T) {
	d := DetectWebSearch("search rust tutorials on intranet")
	require.True(t, d.Search)
	require.Empty(t, d.Site)
	require.Contains(t, d.Query, "rust tutorials")
}

func TestWebSearchNewsRequest(t *testing.T) {
	d := DetectWebSearch("any news about the election")
	require.True(t, d.Search)
	require.Contains(t, d.Query, "election")
	require.True(t, strings.HasSuffix(d.Query, "news"))

	d = DetectWebSearch("I watched the news with my family yesterday evening")
	require.False(t, d.Search)
}

func TestWebSearchSkipsOpinions(t *testing.T) {
	d := DetectWebSearch("I think Go is better than Rust for servers")
	require.False(t, d.Search)
}

func TestWebSearchSkipsShortMessages(t *testing.T) {
	require.False(t, DetectWebSearch("search it").Search)
}

func TestDocumentSearchOnQuestion(t *testing.T) {
	require.True(t, DetectDocumentSearch("Can you summarize the onboarding document I uploaded?"))
	require.True(t, DetectDocumentSearch("explain the architecture described in my design doc"))
}

func TestDocumentSearchDefaultsOnLongMessage(t *testing.T) {
	require.True(t, DetectDocumentSearch("please review these meeting notes and compare them with last week"))
	require.False(t, DetectDocumentSearch("sounds good to me"))
}
