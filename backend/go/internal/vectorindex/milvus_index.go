package vectorindex

import (
	"context"
	"fmt"
	"strings"

	"VoxMind/backend/go/internal/database/milvus"
	"VoxMind/backend/go/internal/models"
	"VoxMind/backend/go/pkg/logger"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusIndex implements Index on top of the shared Milvus client wrapper.
// It uses the raw milvus-sdk-go client so that owner filtering happens
// inside Milvus via a boolean expression, not in application code.
type MilvusIndex struct {
	log        *logger.Logger
	client     client.Client
	collection string
}

// NewMilvusIndex creates a new MilvusIndex over the configured collection.
func NewMilvusIndex(milvusClient *milvus.MilvusClient, log *logger.Logger) (*MilvusIndex, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusIndex{
		log:        log,
		client:     milvusClient.Client,
		collection: milvusClient.Config.Collection,
	}, nil
}

// Upsert writes the embedding for a memo. Milvus upsert semantics make the
// write idempotent: replaying the index step for the same memo overwrites
// the previous entry instead of duplicating it.
func (m *MilvusIndex) Upsert(ctx context.Context, vec models.EmbeddingVector) error {
	if len(vec.Values) == 0 {
		return fmt.Errorf("embedding for memo %s is empty", vec.MemoID)
	}

	idCol := entity.NewColumnVarChar(milvus.FieldID, []string{vec.MemoID})
	userIDCol := entity.NewColumnVarChar(milvus.FieldUserID, []string{vec.OwnerID})
	embeddingCol := entity.NewColumnFloatVector(milvus.FieldEmbedding, len(vec.Values), [][]float32{vec.Values})

	_, err := m.client.Upsert(ctx, m.collection, "" /* default partition */, idCol, userIDCol, embeddingCol)
	if err != nil {
		m.log.WithError(err).Error("failed to upsert embedding into Milvus")
		return fmt.Errorf("failed to upsert embedding into Milvus: %w", err)
	}
	return nil
}

// Query searches the owner's entries for the nearest neighbors of vector.
func (m *MilvusIndex) Query(ctx context.Context, ownerID string, vector []float32, topK int) ([]Match, error) {
	filterExpr := fmt.Sprintf(`%s == "%s"`, milvus.FieldUserID, escapeExprValue(ownerID))

	searchParams, err := entity.NewIndexIvfFlatSearchParam(10)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}
	outputFields := []string{milvus.FieldID, milvus.FieldUserID}

	searchResults, err := m.client.Search(
		ctx, m.collection, []string{}, filterExpr, outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		milvus.FieldEmbedding, entity.L2, topK, searchParams,
	)
	if err != nil {
		m.log.WithError(err).Error("failed to search in Milvus")
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var matches []Match
	for _, res := range searchResults {
		findColumn := func(name string) entity.Column {
			for _, field := range res.Fields {
				if field.Name() == name {
					return field
				}
			}
			return nil
		}

		idCol, ok := findColumn(milvus.FieldID).(*entity.ColumnVarChar)
		if !ok {
			m.log.Warn("search result is missing id field, skipping")
			continue
		}
		idData := idCol.Data()

		var userIDData []string
		if userIDCol, ok := findColumn(milvus.FieldUserID).(*entity.ColumnVarChar); ok {
			userIDData = userIDCol.Data()
		}

		for i := 0; i < res.ResultCount; i++ {
			match := Match{
				MemoID: idData[i],
				Score:  res.Scores[i],
			}
			if userIDData != nil {
				match.OwnerID = userIDData[i]
			}
			matches = append(matches, match)
		}
	}

	return matches, nil
}

// DeleteByIDs removes index entries by memo ID.
func (m *MilvusIndex) DeleteByIDs(ctx context.Context, memoIDs []string) error {
	if len(memoIDs) == 0 {
		return nil
	}

	quoted := make([]string, len(memoIDs))
	for i, id := range memoIDs {
		quoted[i] = fmt.Sprintf(`"%s"`, escapeExprValue(id))
	}
	expr := fmt.Sprintf("%s in [%s]", milvus.FieldID, strings.Join(quoted, ", "))

	if err := m.client.Delete(ctx, m.collection, "", expr); err != nil {
		m.log.WithError(err).Error("failed to delete embeddings from Milvus")
		return fmt.Errorf("failed to delete embeddings from Milvus: %w", err)
	}
	return nil
}

// escapeExprValue escapes a string for use inside a Milvus filter expression.
func escapeExprValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

var _ Index = (*MilvusIndex)(nil)
