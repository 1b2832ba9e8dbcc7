package models

// Chunk is a contiguous piece of the extracted document text
type Chunk struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
}

type ChunkEmbedding struct {
	Chunk
	Embedding []float32 `json:"-"`
}

// Turn is one question/answer exchange of a conversation.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Answer is the outcome of one pass through the QA pipeline.
type Answer struct {
	Question           string  `json:"question"`
	StandaloneQuestion string  `json:"standalone_question"`
	Context            []Chunk `json:"context"`
	Answer             string  `json:"answer"`
}
