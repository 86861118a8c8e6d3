package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/models"
)

var (
	// ErrNoPassages means the run has nothing indexed to answer from.
	ErrNoPassages = errors.New("no indexed passages for this run")
	// ErrQueryDisabled means no embedding or generation model is configured.
	ErrQueryDisabled = errors.New("querying is not configured")
)

const answerSystemPrompt = "You are an assistant answering questions about one document using only the excerpts provided. " +
	"Cite page ranges like (pages 3-5). If the excerpts do not contain the answer, say 'I cannot find this in the document.'"

type QueryService struct {
	runs     *RunService
	db       core.DbClient
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	topK     int
}

func NewQueryService(runs *RunService, db core.DbClient, emb core.EmbeddingProvider, llm core.LLMProvider) *QueryService {
	return &QueryService{runs: runs, db: db, embedder: emb, llm: llm, topK: 5}
}

// Answer is a generated reply plus the passages it was grounded on.
type Answer struct {
	Answer   string              `json:"answer"`
	Passages []models.RunPassage `json:"passages"`
}

// Ask embeds the question, retrieves the closest passages of the run and asks the model.
func (s *QueryService) Ask(ctx context.Context, userID, runID, question string) (*Answer, error) {
	if s.embedder == nil || s.llm == nil {
		return nil, ErrQueryDisabled
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInvalidUser)
	}
	if _, err := s.runs.Get(ctx, userID, runID); err != nil {
		return nil, err
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) == 0 {
		return nil, errors.New("embed question: empty response")
	}

	passages, err := s.db.SearchRunPassages(ctx, runID, vecs[0], s.topK)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	if len(passages) == 0 {
		return nil, ErrNoPassages
	}

	var sb strings.Builder
	for _, p := range passages {
		fmt.Fprintf(&sb, "(pages %d-%d)\n%s\n---\n", p.StartPage, p.EndPage, p.Text)
	}
	userPrompt := fmt.Sprintf("Excerpts:\n%s\nQuestion: %s", sb.String(), question)

	answer, err := s.llm.Generate(ctx, answerSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	for i := range passages {
		passages[i].Embedding = nil
	}
	return &Answer{Answer: answer, Passages: passages}, nil
}
