package openai

import "fmt"

const rerankSystemPrompt = `You are a relevance scoring system. Rate how relevant a document is to a given query on a scale from 0 to 10, where 0 means completely irrelevant and 10 means perfectly relevant. Respond with ONLY a single number (0-10), nothing else.`

const rerankUserPromptTemplate = "Query: %s\n\nDocument: %s\n\nRelevance score (0-10):"

func buildRerankPrompt(query, document string) string {
	return fmt.Sprintf(rerankUserPromptTemplate, query, document)
}
