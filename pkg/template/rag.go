package template

// Template keys of the "rag" group.
const (
	GroupRAG = "rag"

	KeySystemPrompt   = "system_prompt"
	KeyDocumentPrompt = "document_prompt"
	KeyFooterPrompt   = "footer_prompt"
)

// builtinTemplates holds the built-in prompt templates, keyed by
// language -> group -> key.
var builtinTemplates = map[string]map[string]map[string]string{
	"en": {
		GroupRAG: {
			KeySystemPrompt: "You are an assistant to generate a response for the user. " +
				"You will be provided by a set of documents associated with the user's query. " +
				"You have to generate a response based on the documents provided. " +
				"Ignore the documents that are not relevant to the user's query. " +
				"You can apologize to the user if you are not able to generate a response. " +
				"You have to generate response in the same language as the user's query. " +
				"Be polite and respectful to the user. " +
				"Be precise and concise in your response. Avoid unnecessary information.",

			KeyDocumentPrompt: "## Document No: {{.doc_num}}\n" +
				"### Content: {{.chunk_text}}",

			KeyFooterPrompt: "Based only on the above documents, please generate an answer for the user.\n" +
				"## Question:\n{{.query}}\n\n" +
				"## Answer:",
		},
	},
	"zh": {
		GroupRAG: {
			KeySystemPrompt: "你是一个为用户生成回答的助手。" +
				"你将收到一组与用户问题相关的文档。" +
				"你必须基于提供的文档生成回答，忽略与问题无关的文档。" +
				"如果无法生成回答，可以向用户致歉。" +
				"回答语言必须与用户问题的语言一致。" +
				"保持礼貌和尊重，回答准确简洁，避免无关信息。",

			KeyDocumentPrompt: "## 文档编号: {{.doc_num}}\n" +
				"### 内容: {{.chunk_text}}",

			KeyFooterPrompt: "请仅根据以上文档为用户生成回答。\n" +
				"## 问题:\n{{.query}}\n\n" +
				"## 回答:",
		},
	},
}
