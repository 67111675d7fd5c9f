package ai

// Embedding task types. The OpenAI-compatible provider ignores them; gemini
// forwards them so query and document embeddings land in matching spaces.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskSimilarity        = "SEMANTIC_SIMILARITY"
)
