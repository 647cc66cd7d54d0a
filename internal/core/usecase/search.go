package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/core/ports"
)

type SearchOptions struct {
	DefaultLimit int
	MaxLimit     int
	MinScore     float64
}

type SearchFilesUseCase struct {
	gateway ports.EnrichmentGateway
	vector  ports.VectorIndex
	opts    SearchOptions
}

func NewSearchFilesUseCase(gateway ports.EnrichmentGateway, vector ports.VectorIndex, opts SearchOptions) *SearchFilesUseCase {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 50
	}
	return &SearchFilesUseCase{gateway: gateway, vector: vector, opts: opts}
}

func (uc *SearchFilesUseCase) Search(ctx context.Context, ownerID, query string, limit int) ([]domain.SearchHit, error) {
	if ownerID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("owner id is required"))
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("query is required"))
	}
	if limit <= 0 {
		limit = uc.opts.DefaultLimit
	}
	if limit > uc.opts.MaxLimit {
		limit = uc.opts.MaxLimit
	}

	vector, err := uc.gateway.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := uc.vector.Query(ctx, vector, limit, uc.opts.MinScore, domain.VectorFilter{OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	out := make([]domain.SearchHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, domain.SearchHit{
			FileID:   payloadString(hit.Payload, "file_id"),
			Filename: payloadString(hit.Payload, "filename"),
			Summary:  payloadString(hit.Payload, "summary"),
			Score:    hit.Score,
		})
	}
	return out, nil
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
