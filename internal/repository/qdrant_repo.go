package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/timmy/grievo/internal/domain"
)

// seedNamespace scopes the deterministic point ids of category seeds.
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("grievo/category-seeds"))

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host       string
	Port       int
	Collection string
	APIKey     string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS     bool   // Explicitly enable TLS without API Key
}

func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantSeedStore persists category seed vectors in a Qdrant collection so a
// restart with an unchanged model skips re-embedding the exemplars.
type QdrantSeedStore struct {
	conn           *grpc.ClientConn
	pointsClient   pb.PointsClient
	collectClient  pb.CollectionsClient
	collectionName string

	ensureMu sync.Mutex
	ensured  bool
}

// NewQdrantSeedStore connects to Qdrant. Local instances use plaintext; an API
// key or UseTLS switches to TLS 1.3.
func NewQdrantSeedStore(cfg *QdrantConnectionConfig) (*QdrantSeedStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS13,
		})))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantSeedStore{
		conn:           conn,
		pointsClient:   pb.NewPointsClient(conn),
		collectClient:  pb.NewCollectionsClient(conn),
		collectionName: cfg.Collection,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantSeedStore) Close() error {
	return r.conn.Close()
}

// SeedPointID derives the point id for one (model, category, phrase) triple.
func SeedPointID(model string, seed domain.CategorySeed) string {
	return uuid.NewSHA1(seedNamespace, []byte(model+"\x00"+seed.Category+"\x00"+seed.Phrase)).String()
}

func (r *QdrantSeedStore) ensureCollection(ctx context.Context, dim int) error {
	r.ensureMu.Lock()
	defer r.ensureMu.Unlock()
	if r.ensured {
		return nil
	}

	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(dim) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, dim)
		}
		r.ensured = true
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	r.ensured = true
	return nil
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if single := vectors.GetParams(); single != nil && single.GetSize() > 0 {
		return single.GetSize(), true
	}
	for _, params := range vectors.GetParamsMap().GetMap() {
		if params.GetSize() > 0 {
			return params.GetSize(), true
		}
	}
	return 0, false
}

// Load fetches the stored vector of every seed. ok is false when any seed is
// missing, including when the collection does not exist yet.
func (r *QdrantSeedStore) Load(ctx context.Context, model string, seeds []domain.CategorySeed) (map[string][]float32, bool, error) {
	ids := make([]*pb.PointId, len(seeds))
	byID := make(map[string]domain.CategorySeed, len(seeds))
	for i, seed := range seeds {
		id := SeedPointID(model, seed)
		ids[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
		byID[id] = seed
	}

	resp, err := r.pointsClient.Get(ctx, &pb.GetPoints{
		CollectionName: r.collectionName,
		Ids:            ids,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load seed points: %w", err)
	}

	vectors := make(map[string][]float32, len(seeds))
	for _, point := range resp.GetResult() {
		seed, known := byID[point.GetId().GetUuid()]
		if !known {
			continue
		}
		if point.GetPayload()["model"].GetStringValue() != model {
			continue
		}
		data := point.GetVectors().GetVector().GetData()
		if len(data) == 0 {
			continue
		}
		vectors[seed.Category] = data
	}
	if len(vectors) != len(seeds) {
		return nil, false, nil
	}
	return vectors, true, nil
}

// Save upserts one point per seed.
func (r *QdrantSeedStore) Save(ctx context.Context, model string, seeds []domain.CategorySeed, vectors map[string][]float32) error {
	if len(seeds) == 0 {
		return nil
	}
	dim := len(vectors[seeds[0].Category])
	if dim == 0 {
		return fmt.Errorf("missing vector for seed %q", seeds[0].Category)
	}
	if err := r.ensureCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, 0, len(seeds))
	for _, seed := range seeds {
		vector, ok := vectors[seed.Category]
		if !ok {
			return fmt.Errorf("missing vector for seed %q", seed.Category)
		}
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: SeedPointID(model, seed)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vector},
				},
			},
			Payload: map[string]*pb.Value{
				"model":    {Kind: &pb.Value_StringValue{StringValue: model}},
				"category": {Kind: &pb.Value_StringValue{StringValue: seed.Category}},
				"phrase":   {Kind: &pb.Value_StringValue{StringValue: seed.Phrase}},
			},
		})
	}

	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert seed points: %w", err)
	}
	return nil
}
