// Package vectorstore is the sole owner of Qdrant operations: chunk
// embedding storage and cosine-similarity search, filtered by content type
// and quality tier.
package vectorstore

import (
	"context"
	"fmt"
	"sort"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Store owns the Qdrant collection backing chunk search.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New connects to Qdrant at addr and targets the given collection.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error { return s.conn.Close() }

// EnsureCollection creates the chunk collection if it does not already
// exist, sized for dims-dimensional cosine-distance vectors.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vectorstore: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", s.collection, err)
	}
	return nil
}

// ChunkPoint is one chunk embedding with enough denormalized payload to
// filter and present search results without a join back to the graph store.
type ChunkPoint struct {
	ChunkID     string
	ContentID   string
	ChunkIndex  int
	Text        string
	Embedding   []float32
	ContentType string
	Tier        string
}

// Upsert stores chunk points, overwriting any existing point with the same
// ChunkID.
func (s *Store) Upsert(ctx context.Context, chunks []ChunkPoint) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: c.ChunkID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Embedding}},
			},
			Payload: map[string]*pb.Value{
				"content_id":   strValue(c.ContentID),
				"chunk_index":  intValue(c.ChunkIndex),
				"text":         strValue(c.Text),
				"content_type": strValue(c.ContentType),
				"tier":         strValue(c.Tier),
			},
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert %d points: %w", len(chunks), err)
	}
	return nil
}

// DeleteByContentID removes every chunk point belonging to a content. Used
// before reprocessing writes fresh chunks.
func (s *Store) DeleteByContentID(ctx context.Context, contentID string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{Must: []*pb.Condition{fieldMatch("content_id", contentID)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete by content_id %s: %w", contentID, err)
	}
	return nil
}

// SearchResult is one chunk hit, collapsed to at most one per content.
type SearchResult struct {
	ContentID   string
	ChunkText   string
	Score       float32
	ContentType string
	Tier        string
}

// SearchParams bounds a similarity search.
type SearchParams struct {
	Embedding      []float32
	Limit          int
	ScoreFloor     float32 // minimum cosine similarity; spec default 0.30
	ContentType    string  // empty = no filter
	AllowedTiers   []string
}

// Search executes a cosine-similarity query, applying the score floor and
// optional content-type/tier filters, and collapses results to at most one
// hit per content_id (the highest-scoring chunk).
func (s *Store) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         p.Embedding,
		Limit:          uint64(p.Limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		ScoreThreshold: floatPtr(p.ScoreFloor),
	}

	var must []*pb.Condition
	if p.ContentType != "" {
		must = append(must, fieldMatch("content_type", p.ContentType))
	}
	if len(p.AllowedTiers) > 0 {
		should := make([]*pb.Condition, len(p.AllowedTiers))
		for i, tier := range p.AllowedTiers {
			should[i] = fieldMatch("tier", tier)
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Filter{Filter: &pb.Filter{Should: should}},
		})
	}
	if len(must) > 0 {
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}

	bestPerContent := make(map[string]SearchResult)
	for _, r := range resp.GetResult() {
		payload := r.GetPayload()
		contentID := payload["content_id"].GetStringValue()
		if contentID == "" {
			continue
		}
		sr := SearchResult{
			ContentID:   contentID,
			ChunkText:   payload["text"].GetStringValue(),
			Score:       r.GetScore(),
			ContentType: payload["content_type"].GetStringValue(),
			Tier:        payload["tier"].GetStringValue(),
		}
		if existing, ok := bestPerContent[contentID]; !ok || sr.Score > existing.Score {
			bestPerContent[contentID] = sr
		}
	}

	out := make([]SearchResult, 0, len(bestPerContent))
	for _, v := range bestPerContent {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func strValue(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
func intValue(i int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(i)}}
}
func floatPtr(f float32) *float32 { return &f }
