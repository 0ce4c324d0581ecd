package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// payloadIDField stores the caller's original (non-UUID) chunk ID, since
// Qdrant point IDs must be UUIDs or positive integers.
const payloadIDField = "_original_id"

// QdrantStore is the persistent dense VectorStore backend, adapted from
// intelligencedev-manifold's qdrantVector: same DSN parsing and
// deterministic-UUID-from-id scheme, generalized to the VectorStore
// interface's Filter-based search and IDs listing (used to check the
// dense/sparse id-set invariant after reindex).
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// NewQdrantStore connects to the Qdrant instance at dsn (e.g.
// "http://localhost:6334" or "https://host:6334?api_key=...") and ensures
// collection exists with the given dimensions and cosine distance.
func NewQdrantStore(dsn string, collection string, dimensions int) (*QdrantStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("qdrant requires dimensions > 0")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	// Index rebuilds hold the connection open with long idle gaps between
	// upsert batches; keepalives stop intermediate proxies from dropping it.
	cfg.GrpcOptions = []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	qs := &QdrantStore{client: client, collection: collection, dimensions: dimensions}
	if err := qs.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return qs, nil
}

func (q *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func pointIDFor(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *QdrantStore) Dimensions() int { return q.dimensions }

func (q *QdrantStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	uuidStr := pointIDFor(id)
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	if uuidStr != id {
		payload[payloadIDField] = id
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	points := []*qdrant.PointStruct{{
		Id:      qdrant.NewIDUUID(uuidStr),
		Vectors: qdrant.NewVectorsDense(vec),
		Payload: qdrant.NewValueMap(payload),
	}}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points})
	return err
}

func (q *QdrantStore) Delete(ctx context.Context, id string) error {
	pointID := qdrant.NewIDUUID(pointIDFor(id))
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(pointID),
	})
	return err
}

func (q *QdrantStore) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	var queryFilter *qdrant.Filter
	if len(filter) > 0 {
		var must []*qdrant.Condition
		for key, val := range filter {
			if val == "" {
				continue
			}
			must = append(must, qdrant.NewMatch(key, val))
		}
		if len(must) > 0 {
			queryFilter = &qdrant.Filter{Must: must}
		}
	}

	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		id := hit.Id.GetUuid()
		if hit.Payload != nil {
			if orig, ok := hit.Payload[payloadIDField]; ok {
				id = orig.GetStringValue()
			}
		}
		out = append(out, Result{ID: id, Score: float64(hit.Score)})
	}
	return out, nil
}

// IDs is a best-effort full scroll of the collection's original chunk IDs,
// used only by offline reindex-invariant checks, never on the hot path.
func (q *QdrantStore) IDs(ctx context.Context) ([]string, error) {
	limit := uint32(1000)
	var out []string
	seen := make(map[string]bool)
	var offset *qdrant.PointId
	for {
		req := &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
			Offset:         offset,
		}
		points, err := q.client.Scroll(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			break
		}
		for _, p := range points {
			id := p.Id.GetUuid()
			if p.Payload != nil {
				if orig, ok := p.Payload[payloadIDField]; ok {
					id = orig.GetStringValue()
				}
			}
			// scroll offset is inclusive, so each page re-reads its boundary
			// point; dedupe instead of depending on that server behavior.
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		if len(points) < int(limit) {
			break
		}
		offset = points[len(points)-1].Id
	}
	return out, nil
}

func (q *QdrantStore) Stats(ctx context.Context) (Stats, error) {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.collection})
	if err != nil {
		return Stats{}, err
	}
	return Stats{Count: int(count), Dimensions: q.dimensions, Distance: "cosine"}, nil
}

func (q *QdrantStore) Close() error { return q.client.Close() }
