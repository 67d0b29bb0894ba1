package s3

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arriba/blobstore"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // base_uri:version -> item
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseURI := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}
	version := func(item map[string]types.AttributeValue) uint64 {
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	slices.SortFunc(items, func(a, b map[string]types.AttributeValue) int {
		va, vb := version(a), version(b)
		switch {
		case va > vb:
			return -1
		case va < vb:
			return 1
		default:
			return 0
		}
	})

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestDDBCommitStore_Generations(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(NewStore(new(MockS3Client), "b", ""), newMockDDBClient(), "commits", "s3://b")

	gen, err := store.Generation(ctx, "bugs")
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, store.Commit(ctx, "bugs", 1))
	require.NoError(t, store.Commit(ctx, "bugs", 2))
	require.NoError(t, store.Commit(ctx, "bugs", 10))

	gen, err = store.Generation(ctx, "bugs")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), gen)

	// Keys are independent.
	gen, err = store.Generation(ctx, "other")
	require.NoError(t, err)
	assert.Zero(t, gen)
}

func TestDDBCommitStore_StaleCommitConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(NewStore(new(MockS3Client), "b", ""), newMockDDBClient(), "commits", "s3://b")

	require.NoError(t, store.Commit(ctx, "bugs", 2))
	assert.ErrorIs(t, store.Commit(ctx, "bugs", 2), blobstore.ErrConflict)
	assert.ErrorIs(t, store.Commit(ctx, "bugs", 1), blobstore.ErrConflict)
}

func TestDDBCommitStore_ConcurrentCommitters(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store := NewDDBCommitStore(NewStore(new(MockS3Client), "b", ""), ddb, "commits", "s3://b")

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.Commit(ctx, "bugs", 1)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, blobstore.ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)
}
