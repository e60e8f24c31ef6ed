package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satyam-ai-go/pkg/es"
)

func TestRetrieveShapesMatches(t *testing.T) {
	index := &fakeIndex{matches: []es.Match{
		{Metadata: map[string]any{"text": "Section 37 defines...", "source_pdf": "ipc.pdf", "source": "ipc_act.txt", "page": float64(12), "chunk_id": "c-1"}},
		{Metadata: map[string]any{"text": "   "}},
		{Metadata: map[string]any{"text": "Article 21 protects life.", "source_act": "Constitution of India", "page_number": "7"}},
		{Metadata: map[string]any{"text": "orphan chunk"}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, 0, false)

	items, err := r.Retrieve(context.Background(), "section 37", 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, defaultTopK, index.lastTopK)

	assert.Equal(t, "[[Source: ipc.pdf (Page 12)]]\nSection 37 defines...", items[0].Context)
	assert.Equal(t, "[Index: legal-index] [Source: ipc.pdf] [Chunk: c-1]", items[0].Source)
	assert.Equal(t, "[[Source: Constitution of India (Page 7)]]\nArticle 21 protects life.", items[1].Context)
	assert.Equal(t, "[Index: legal-index] [Source: Constitution of India] [Chunk: ?]", items[1].Source)
	assert.Equal(t, "[[Source: Unknown Source (Page ?)]]\norphan chunk", items[2].Context)

	for i, item := range items {
		assert.Equal(t, i, item.Rank)
	}
}

func TestRetrieveEmptyIndexIsNotAnError(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeIndex{}, 5, false)
	items, err := r.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRetrieveLawFilter(t *testing.T) {
	index := &fakeIndex{}

	_, err := NewRetriever(&fakeEmbedder{}, index, 8, false).Retrieve(context.Background(), "Section 302 IPC", 0)
	require.NoError(t, err)
	assert.Nil(t, index.lastFilter, "detection alone must not filter")

	_, err = NewRetriever(&fakeEmbedder{}, index, 8, true).Retrieve(context.Background(), "Section 302 IPC", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"source_act": []string{"Indian Penal Code", "IPC"}}, index.lastFilter)
}

func TestRetrievePropagatesErrors(t *testing.T) {
	embedErr := errors.New("embedding service down")
	_, err := NewRetriever(&fakeEmbedder{err: embedErr}, &fakeIndex{}, 8, false).Retrieve(context.Background(), "q", 0)
	assert.ErrorIs(t, err, embedErr)

	indexErr := errors.New("index unreachable")
	_, err = NewRetriever(&fakeEmbedder{}, &fakeIndex{err: indexErr}, 8, false).Retrieve(context.Background(), "q", 0)
	assert.ErrorIs(t, err, indexErr)
}

func TestDetectLaw(t *testing.T) {
	assert.Equal(t, []string{"Code of Criminal Procedure", "CrPC"}, DetectLaw("How to file an FIR?"))
	assert.Equal(t, []string{"Constitution of India"}, DetectLaw("Explain Article 21"))
	assert.Nil(t, DetectLaw("What is a tort?"))
}
