package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragserve/internal/model"
	"github.com/kart-io/ragserve/pkg/llm"
	"github.com/kart-io/ragserve/pkg/template"
)

// Answerer drives the retrieve, prompt-assemble and generate pipeline for a
// query against one document.
type Answerer struct {
	retriever *Retriever
	generator llm.GenerationProvider
	templates *template.Resolver
}

// NewAnswerer creates an Answerer.
func NewAnswerer(retriever *Retriever, generator llm.GenerationProvider, templates *template.Resolver) *Answerer {
	return &Answerer{
		retriever: retriever,
		generator: generator,
		templates: templates,
	}
}

// Answer retrieves chunks relevant to query from the document's collection,
// assembles a grounded prompt and calls the generation provider.
//
// Zero retrieval hits yield (nil, nil): no prompt is assembled and no
// generation call is made. When generation fails or returns empty text, the
// already-built prompt and history are still returned so callers can inspect
// what was sent.
func (a *Answerer) Answer(ctx context.Context, fileID, query string, limit int) (*model.Answer, error) {
	docs, err := a.retriever.Retrieve(ctx, fileID, query, limit)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		logger.Warnw("no documents retrieved", "file_id", fileID)
		return nil, nil
	}

	systemPrompt, err := a.templates.Resolve(template.GroupRAG, template.KeySystemPrompt, nil)
	if err != nil {
		return nil, fmt.Errorf("resolve system prompt: %w", err)
	}

	documentPrompts := make([]string, 0, len(docs))
	for idx, doc := range docs {
		p, err := a.templates.Resolve(template.GroupRAG, template.KeyDocumentPrompt, map[string]any{
			"doc_num":    idx + 1,
			"chunk_text": doc.Text,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve document prompt: %w", err)
		}
		documentPrompts = append(documentPrompts, p)
	}

	footerPrompt, err := a.templates.Resolve(template.GroupRAG, template.KeyFooterPrompt, map[string]any{
		"query": query,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve footer prompt: %w", err)
	}

	history := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
	}
	fullPrompt := strings.Join(documentPrompts, "\n") + "\n\n" + footerPrompt

	answer := &model.Answer{
		FullPrompt: fullPrompt,
		History:    history,
	}

	text, err := a.generator.Generate(ctx, fullPrompt, history)
	if err != nil {
		// Prompt and history are kept so the caller can see what was sent.
		return answer, fmt.Errorf("generate answer: %w", err)
	}
	if text == "" {
		logger.Warnw("generation returned empty answer", "file_id", fileID)
	}

	answer.Text = text
	return answer, nil
}
