package models

const (
	// NotFoundAnswer is returned verbatim when retrieval produced nothing
	// above the similarity threshold. Distinguishes "no knowledge" from a
	// system fault.
	NotFoundAnswer = "No relevant documents found in the knowledge base to answer this question."

	// ExcerptLength bounds the citation excerpt taken from a chunk.
	ExcerptLength = 200
)

var (
	SystemPromptTemplate = `You are a knowledge base assistant. Answer the question using ONLY the provided context. If the context does not contain the information needed, reply exactly: "%s". Do not invent facts that are not in the context.`

	QAPromptTemplate = `Context:
%s
Conversation so far:
%s
Question: %s`
)
