package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satyam-ai-go/internal/model"
)

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{float32(len(text))}, nil
}

type memIndexer struct {
	chunks []model.LegalChunk
}

func (m *memIndexer) IndexChunk(_ context.Context, chunk model.LegalChunk) error {
	m.chunks = append(m.chunks, chunk)
	return nil
}

func TestSeedIndexesChunks(t *testing.T) {
	input := strings.Join([]string{
		`{"text":"Section 37 defines...","source":"ipc_act.txt","chunk_id":"37"}`,
		``,
		`{"id":"art-21","text":"Article 21 protects life.","source_act":"Constitution of India","page":"12"}`,
		`{"text":"   ","source":"empty.txt"}`,
		`{"text":"no provenance"}`,
	}, "\n")
	idx := &memIndexer{}

	n, err := NewSeeder(stubEmbedder{}, idx).Seed(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, idx.chunks, 3)

	assert.Equal(t, "ipc_act.txt#37", idx.chunks[0].ID)
	assert.Equal(t, []float32{21}, idx.chunks[0].Vector)
	assert.Equal(t, "art-21", idx.chunks[1].ID)
	assert.Equal(t, "12", idx.chunks[1].Page)
	assert.NotEmpty(t, idx.chunks[2].ID)
}

func TestSeedAcceptsNumericMetadata(t *testing.T) {
	input := strings.Join([]string{
		`{"text":"Section 37 defines...","source":"ipc_act.txt","chunk_id":4,"page":12}`,
		`{"text":"Article 21 protects life.","source_pdf":"constitution.pdf","chunk_id":"21-a","page_number":3.5}`,
	}, "\n")
	idx := &memIndexer{}

	n, err := NewSeeder(stubEmbedder{}, idx).Seed(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, idx.chunks, 2)

	assert.Equal(t, "4", idx.chunks[0].ChunkID)
	assert.Equal(t, "12", idx.chunks[0].Page)
	assert.Equal(t, "ipc_act.txt#4", idx.chunks[0].ID)
	assert.Equal(t, "21-a", idx.chunks[1].ChunkID)
	assert.Equal(t, "3.5", idx.chunks[1].PageNumber)
	assert.Equal(t, "constitution.pdf#21-a", idx.chunks[1].ID)
}

func TestSeedStopsOnError(t *testing.T) {
	_, err := NewSeeder(stubEmbedder{}, &memIndexer{}).Seed(context.Background(), strings.NewReader("{broken"))
	assert.Error(t, err)

	embedErr := errors.New("embedding down")
	n, err := NewSeeder(stubEmbedder{err: embedErr}, &memIndexer{}).Seed(context.Background(), strings.NewReader(`{"text":"x"}`))
	assert.ErrorIs(t, err, embedErr)
	assert.Zero(t, n)
}
