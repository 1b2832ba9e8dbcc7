package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdfqa/internal/models"
)

const (
	collectionName = "pdf_chunks"

	metaSource  = "source"
	metaChunkID = "chunk_id"
)

var (
	// ErrLengthMismatch is returned by Build when chunks and vectors differ in count.
	ErrLengthMismatch = errors.New("chunks and vectors length mismatch")

	errNotPrecomputed = errors.New("embeddings must be computed before indexing")
)

// Index is an in-memory similarity index over the chunks of one document.
// It is immutable once built; a new document gets a new Index.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// Build creates a fresh index from (chunk, vector) pairs. Vectors are
// normalized by chromem, so search ranks by cosine similarity.
func Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
	}

	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	if len(chunks) > 0 {
		docs := make([]chromem.Document, len(chunks))
		for i, chunk := range chunks {
			docs[i] = chromem.Document{
				ID:        strconv.Itoa(i),
				Content:   chunk.Content,
				Metadata:  createMetadata(chunk),
				Embedding: vectors[i],
			}
		}
		if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("failed to add documents: %w", err)
		}
	}

	log.Debug().Int("documents", c.Count()).Msg("Built vector index")
	return &Index{db: db, collection: c}, nil
}

// BuildFromEmbeddings is Build for the output of embedding.GenerateEmbedding.
func BuildFromEmbeddings(ctx context.Context, chunkEmbeddings []models.ChunkEmbedding) (*Index, error) {
	chunks := make([]models.Chunk, len(chunkEmbeddings))
	vectors := make([][]float32, len(chunkEmbeddings))
	for i, ce := range chunkEmbeddings {
		chunks[i] = ce.Chunk
		vectors[i] = ce.Embedding
	}
	return Build(ctx, chunks, vectors)
}

// Len reports the number of indexed chunks.
func (idx *Index) Len() int {
	if idx == nil || idx.collection == nil {
		return 0
	}
	return idx.collection.Count()
}

// Search returns up to k chunks ordered by descending similarity to query.
// The order of equally similar chunks is unspecified.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]models.Chunk, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	n := min(k, idx.Len())
	if n <= 0 {
		return nil, nil
	}

	results, err := idx.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	chunks := make([]models.Chunk, len(results))
	for i, r := range results {
		chunks[i] = chunkFromResult(r)
	}
	return chunks, nil
}

func createMetadata(chunk models.Chunk) map[string]string {
	return map[string]string{
		metaSource:  chunk.Source,
		metaChunkID: strconv.Itoa(chunk.ChunkID),
	}
}

func chunkFromResult(r chromem.Result) models.Chunk {
	id, _ := strconv.Atoi(r.Metadata[metaChunkID])
	return models.Chunk{
		Content: r.Content,
		Source:  r.Metadata[metaSource],
		ChunkID: id,
	}
}

// refuseEmbedding keeps chromem from falling back to its default remote
// embedder; every vector in this index comes from the caller.
func refuseEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errNotPrecomputed
}
