package service

import "fmt"

const (
	// InsufficientContextMarker 是模型认为检索内容不足以回答时输出的标记。
	InsufficientContextMarker = "INSUFFICIENT_CONTEXT"
	// SourcesUsedMarker 之后的内容是模型自述的来源，会被丢弃。
	SourcesUsedMarker = "SOURCES_USED:"
	// RefusalSentence 是非法律问题的固定拒答。
	RefusalSentence = "I apologize, but I am a specialized Legal AI. I can only assist with questions related to Indian Law and Justice."
	// refusalMarker 用于识别模型返回的拒答。
	refusalMarker = "I can only assist with questions related to Indian Law"

	defaultGreetingAnswer = "Namaste! I am Satyam AI, your Indian Legal Assistant. How can I help you with the law today?"
	defaultCreatorAnswer  = "I was created by Atharv Munj."

	fallbackNote     = "> **Note:** This information is generated by AI based on general legal knowledge as the specific section was not found in the verified database."
	failurePrefix    = "I apologize, but I encountered an error connecting to the AI service: "
	emptyQueryAnswer = "Please enter a question about Indian law."
)

const legalSystemPrompt = `You are a professional Indian Legal Assistant AI.

RULES:
1. If the question is about a LEGAL SECTION or ARTICLE:
   - Answer directly from the statute text.
   - Do NOT require case law.

2. If the question explicitly asks for a CASE or JUDGMENT:
   - Only answer if that case exists in the context.

3. You MUST NOT invent:
   - case names
   - punishments
   - sections
   - legal principles

4. Always cite the real source at the end if database is used.

5. KEEP ANSWERS CONCISE (3-4 lines maximum).`

const rewriteSystemPrompt = "ACT AS A CONTEXTUAL QUERY REWRITER."

func rewritePrompt(history, query string) string {
	return fmt.Sprintf(`CHAT HISTORY:
%s

CURRENT QUERY:
%s

TASK:
Rewrite the "CURRENT QUERY" to be a fully self-contained question that includes necessary details from the "CHAT HISTORY".
- If the query is already self-contained (e.g., "What is Section 302?"), return it AS IS.
- If the query implies context (e.g., "What is the punishment?", "Tell me more"), add the missing subject from history.
- Return ONLY the rewritten query text. Do not add quotes or headers.`, history, query)
}

func groundedPrompt(historyBlock, contextBlock, query string) string {
	return fmt.Sprintf(`%sLEGAL DATABASE CONTEXT:
%s

QUESTION:
%s

INSTRUCTIONS:
- Answer ONLY using the above legal context.
- Do NOT use external knowledge.
- Do NOT invent sections, punishments, or cases.
- If the retrieved context does NOT contain the specific text or details to answer the question, Reply EXACTLY: "%s".
- Cite the specific sources you strictly used from the context.
- End your response with a SINGLE line: "%s <comma_separated_list_of_sources>"
- KEEP THE ANSWER CONCISE (maximum 3-4 lines).`, historyBlock, contextBlock, query, InsufficientContextMarker, SourcesUsedMarker)
}

func fallbackPrompt(query string) string {
	return fmt.Sprintf(`The legal database does not contain information to answer this question.

QUESTION:
%s

TASK:
1. **RELEVANCE CHECK**: Is this question related to Indian Law, Acts, Constitution, Rights, Crime, Police, Courts, or Justice?
2. **IF NOT RELATED** (e.g. Cricket, Bollywood, Food, Coding, General Science):
   - Reply EXACTLY: "%s"
3. **IF RELATED**:
   - Provide a GENERAL LEGAL EXPLANATION based on commonly known Indian law.
   - Do NOT mention exact section numbers or case names unless clearly certain.
   - Keep it educational and concise (3-4 lines).`, query, RefusalSentence)
}
