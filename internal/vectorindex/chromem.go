package vectorindex

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/chatpanel/learning-hub/internal/embeddings"
)

// ChromemGateway is an embedded vector index backed by chromem-go, persisted to disk when a path is given.
// Documents are keyed by learning record id; the user message is the embedded content.
type ChromemGateway struct {
	collection *chromem.Collection
	name       string
}

// NewChromemGateway opens (or creates) collection name. An empty path keeps the index in memory.
func NewChromemGateway(path, name string, embedder embeddings.Client) (*ChromemGateway, error) {
	var (
		db  *chromem.DB
		err error
	)

	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
		}
	}

	collection, err := db.GetOrCreateCollection(name, nil, chromemEmbeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("open chromem collection %s: %w", name, err)
	}

	return &ChromemGateway{collection: collection, name: name}, nil
}

// chromemEmbeddingFunc adapts embedder; chromem compares by dot product so vectors are normalised.
func chromemEmbeddingFunc(embedder embeddings.Client) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := embedder.CreateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}

		normalizeL2(vec)

		return vec, nil
	}
}

// documentMetadata flattens a StoreRequest into chromem's string metadata.
func documentMetadata(req StoreRequest) map[string]string {
	md := map[string]string{
		payloadLearningID:  req.LearningID.String(),
		payloadBotResponse: req.BotResponse,
	}

	if req.WasHelpful != nil {
		md[payloadWasHelpful] = strconv.FormatBool(*req.WasHelpful)
	}

	if req.Intent != nil {
		md[payloadIntent] = *req.Intent
	}

	if req.Category != nil {
		md[payloadCategory] = *req.Category
	}

	if req.OriginID != nil {
		md[payloadOriginID] = *req.OriginID
	}

	return md
}

func matchFromResult(r chromem.Result) Match {
	m := Match{
		ID:          r.ID,
		UserMessage: r.Content,
		Similarity:  float64(r.Similarity),
		Metadata:    map[string]any{},
	}

	for key, v := range r.Metadata {
		switch key {
		case payloadBotResponse:
			m.BotResponse = v
		case payloadWasHelpful:
			if helpful, err := strconv.ParseBool(v); err == nil {
				m.WasHelpful = &helpful
			}
		default:
			m.Metadata[key] = v
		}
	}

	return m
}

// Store implements Gateway. Storing the same learning id again replaces the document.
func (g *ChromemGateway) Store(ctx context.Context, req StoreRequest) (string, error) {
	id := req.LearningID.String()

	err := g.collection.AddDocument(ctx, chromem.Document{
		ID:       id,
		Metadata: documentMetadata(req),
		Content:  req.UserMessage,
	})
	if err != nil {
		return "", fmt.Errorf("chromem add document: %w", err)
	}

	return id, nil
}

// Update implements Gateway. The stored embedding is reused.
func (g *ChromemGateway) Update(ctx context.Context, vectorID string, helpful bool) error {
	if _, err := uuid.Parse(vectorID); err != nil {
		return fmt.Errorf("invalid vector id %q: %w", vectorID, err)
	}

	doc, err := g.collection.GetByID(ctx, vectorID)
	if err != nil {
		return fmt.Errorf("chromem get document: %w", err)
	}

	md := make(map[string]string, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		md[k] = v
	}

	md[payloadWasHelpful] = strconv.FormatBool(helpful)
	doc.Metadata = md

	if err := g.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem update document: %w", err)
	}

	return nil
}

// Delete implements Gateway.
func (g *ChromemGateway) Delete(ctx context.Context, vectorID string) error {
	if err := g.collection.Delete(ctx, nil, nil, vectorID); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}

	return nil
}

// Search implements Gateway.
func (g *ChromemGateway) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	out := &SearchResponse{Matches: []Match{}, Query: req.Query}

	// chromem rejects a result count above the collection size.
	limit := min(req.Limit, g.collection.Count())
	if limit <= 0 {
		return out, nil
	}

	var where map[string]string
	if req.Helpful != nil {
		where = map[string]string{payloadWasHelpful: strconv.FormatBool(*req.Helpful)}
	}

	results, err := g.collection.Query(ctx, req.Query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	for _, r := range results {
		out.Matches = append(out.Matches, matchFromResult(r))
	}

	out.TotalFound = len(out.Matches)

	return out, nil
}

// Stats implements StatsReporter.
func (g *ChromemGateway) Stats(context.Context) (map[string]any, error) {
	return map[string]any{
		"backend":          "chromem",
		"collection_name":  g.name,
		"total_embeddings": g.collection.Count(),
	}, nil
}
