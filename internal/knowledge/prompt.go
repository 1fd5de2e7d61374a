package knowledge

import (
	"fmt"
	"strings"

	"shopkeeper/internal/models"
)

const contextBlockSeparator = "\n\n---\n\n"

// BuildContext renders ranked search results as numbered source blocks.
func BuildContext(results []models.KnowledgeSearchResult) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("[Source %d: %s]\n%s", i+1, r.Title, r.Content))
	}
	return strings.Join(blocks, contextBlockSeparator)
}

// BuildRAGPrompt embeds retrieved context into a system prompt. The prompt
// instructs the model to decline when the knowledge base has nothing
// relevant and to cite sources, rather than improvising an answer.
func BuildRAGPrompt(userQuery, knowledgeContext, systemPrompt string) (string, string) {
	var ragSystemPrompt string
	if systemPrompt != "" {
		ragSystemPrompt = systemPrompt + "\n\n# Knowledge Base Reference\n" +
			"The following knowledge base content is related to the user's question. " +
			"Prefer this information when answering. If the knowledge base contains " +
			"no relevant information, tell the user so explicitly.\n\n" +
			knowledgeContext
	} else {
		ragSystemPrompt = "You are a helpful assistant. Answer the user's question " +
			"based on the knowledge base content below.\n" +
			"If the knowledge base contains no relevant information, say so honestly. " +
			"Cite your sources when answering.\n\n# Knowledge Base Content\n" +
			knowledgeContext
	}

	return ragSystemPrompt, userQuery
}
