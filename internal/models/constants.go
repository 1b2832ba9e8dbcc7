package models

const (
	SourcePDF      = "pdf"
	NoAnswerFound  = "No answer found."
	ContextJoiner  = "\n\n"
	PleaseUpload   = "Please upload a PDF file to start."
	PleaseAsk      = "Please enter a question."
	PDFProcessed   = "PDF has been processed. You can now ask a question."
	OnlyPDFAllowed = "Only PDF files are supported."
)

var (
	CondenseQuestionPrompt = "Given a chat history and the latest user question " +
		"which might reference context in the chat history, " +
		"formulate a standalone question which can be understood " +
		"without the chat history. Do NOT answer the question, " +
		"just reformulate it if needed and otherwise return it as is."

	// QAPromptTemplate takes the retrieved context as its only argument.
	QAPromptTemplate = "You are an assistant for question-answering tasks. " +
		"Use the following pieces of retrieved context to answer " +
		"the question. If you don't know the answer, say that you " +
		"don't know. Use three sentences maximum and keep the " +
		"answer concise." +
		"\n\n" +
		"%s"
)
