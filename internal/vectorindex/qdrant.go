package vectorindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/chatpanel/learning-hub/internal/embeddings"
)

// Qdrant payload keys.
const (
	payloadLearningID  = "learning_id"
	payloadUserMessage = "user_message"
	payloadBotResponse = "bot_response"
	payloadWasHelpful  = "was_helpful"
	payloadIntent      = "intent"
	payloadCategory    = "category"
	payloadOriginID    = "origin_id"
)

// QdrantPoints is the subset of *qdrant.Client used by QdrantGateway.
type QdrantPoints interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	SetPayload(ctx context.Context, request *qdrant.SetPayloadPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
}

// QdrantOptions configures NewQdrantClient.
type QdrantOptions struct {
	Host   string
	Port   int
	UseTLS bool
	APIKey string
}

// NewQdrantClient opens a gRPC client to Qdrant.
func NewQdrantClient(opts QdrantOptions) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		UseTLS: opts.UseTLS,
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	return client, nil
}

// QdrantGateway stores one point per learning record; the point id is the learning record id.
// Until EnsureCollection succeeds, Store retries it with the embedding's length.
type QdrantGateway struct {
	client     QdrantPoints
	collection string
	embedder   embeddings.Client

	mu    sync.Mutex
	ready bool
}

// NewQdrantGateway creates a gateway on collection.
func NewQdrantGateway(client QdrantPoints, collection string, embedder embeddings.Client) *QdrantGateway {
	return &QdrantGateway{client: client, collection: collection, embedder: embedder}
}

// EnsureCollection creates the collection with cosine distance when it does not exist.
func (g *QdrantGateway) EnsureCollection(ctx context.Context, dimensions int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ready {
		return nil
	}

	if err := g.ensureCollection(ctx, dimensions); err != nil {
		return err
	}

	g.ready = true

	return nil
}

func (g *QdrantGateway) ensureCollection(ctx context.Context, dimensions int) error {
	exists, err := g.client.CollectionExists(ctx, g.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", g.collection, err)
	}

	if exists {
		return nil
	}

	err = g.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: g.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions), //nolint:gosec // dimensions is validated positive by config
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", g.collection, err)
	}

	return nil
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func boolValue(b bool) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: b}}
}

// pointPayload builds the payload stored with a point. Absent optional fields are omitted.
func pointPayload(req StoreRequest) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		payloadLearningID:  stringValue(req.LearningID.String()),
		payloadUserMessage: stringValue(req.UserMessage),
		payloadBotResponse: stringValue(req.BotResponse),
	}

	if req.WasHelpful != nil {
		payload[payloadWasHelpful] = boolValue(*req.WasHelpful)
	}

	optional := map[string]*string{
		payloadIntent:   req.Intent,
		payloadCategory: req.Category,
		payloadOriginID: req.OriginID,
	}
	for key, v := range optional {
		if v != nil {
			payload[key] = stringValue(*v)
		}
	}

	return payload
}

// matchFromPoint converts a scored point back into a Match.
func matchFromPoint(point *qdrant.ScoredPoint) Match {
	m := Match{
		ID:         point.GetId().GetUuid(),
		Similarity: float64(point.GetScore()),
		Metadata:   map[string]any{},
	}

	for key, v := range point.GetPayload() {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			switch key {
			case payloadUserMessage:
				m.UserMessage = kind.StringValue
			case payloadBotResponse:
				m.BotResponse = kind.StringValue
			default:
				m.Metadata[key] = kind.StringValue
			}
		case *qdrant.Value_BoolValue:
			if key == payloadWasHelpful {
				helpful := kind.BoolValue
				m.WasHelpful = &helpful
			}
		}
	}

	return m
}

func pointSelector(id string) *qdrant.PointsSelector {
	return &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Points{
			Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{qdrant.NewIDUUID(id)}},
		},
	}
}

func parsePointID(vectorID string) (string, error) {
	id, err := uuid.Parse(vectorID)
	if err != nil {
		return "", fmt.Errorf("invalid vector id %q: %w", vectorID, err)
	}

	return id.String(), nil
}

// Store implements Gateway.
func (g *QdrantGateway) Store(ctx context.Context, req StoreRequest) (string, error) {
	vec, err := g.embedder.CreateEmbedding(ctx, req.UserMessage)
	if err != nil {
		return "", fmt.Errorf("embed learning record: %w", err)
	}

	if err := g.EnsureCollection(ctx, len(vec)); err != nil {
		return "", err
	}

	id := req.LearningID.String()

	_, err = g.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: g.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(vec...),
			Payload: pointPayload(req),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("qdrant upsert: %w", err)
	}

	return id, nil
}

// Update implements Gateway.
func (g *QdrantGateway) Update(ctx context.Context, vectorID string, helpful bool) error {
	id, err := parsePointID(vectorID)
	if err != nil {
		return err
	}

	_, err = g.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: g.collection,
		Wait:           qdrant.PtrOf(true),
		Payload:        map[string]*qdrant.Value{payloadWasHelpful: boolValue(helpful)},
		PointsSelector: pointSelector(id),
	})
	if err != nil {
		return fmt.Errorf("qdrant set payload: %w", err)
	}

	return nil
}

// Delete implements Gateway.
func (g *QdrantGateway) Delete(ctx context.Context, vectorID string) error {
	id, err := parsePointID(vectorID)
	if err != nil {
		return err
	}

	_, err = g.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: g.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         pointSelector(id),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}

	return nil
}

// Search implements Gateway.
func (g *QdrantGateway) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	vec, err := g.embedder.CreateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var filter *qdrant.Filter
	if req.Helpful != nil {
		filter = &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatchBool(payloadWasHelpful, *req.Helpful)}}
	}

	points, err := g.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: g.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(req.Limit)), //nolint:gosec // limit is capped by the caller
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	matches := make([]Match, 0, len(points))
	for _, point := range points {
		matches = append(matches, matchFromPoint(point))
	}

	return &SearchResponse{Matches: matches, Query: req.Query, TotalFound: len(matches)}, nil
}

// Stats implements StatsReporter.
func (g *QdrantGateway) Stats(ctx context.Context) (map[string]any, error) {
	count, err := g.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: g.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant count: %w", err)
	}

	return map[string]any{
		"backend":          "qdrant",
		"collection_name":  g.collection,
		"total_embeddings": count,
	}, nil
}
