package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// mockDDB is a minimal mock of the DDBAPI interface for unit testing.
type mockDDB struct {
	getItemFn           func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	queryFn             func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	transactWriteItemFn func(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	describeTableFn     func(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	createTableFn       func(ctx context.Context, input *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	updateTTLFn         func(ctx context.Context, input *dynamodb.UpdateTimeToLiveInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

func (m *mockDDB) GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFn != nil {
		return m.getItemFn(ctx, input, opts...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDDB) Query(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, input, opts...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockDDB) TransactWriteItems(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if m.transactWriteItemFn != nil {
		return m.transactWriteItemFn(ctx, input, opts...)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (m *mockDDB) DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeTableFn != nil {
		return m.describeTableFn(ctx, input, opts...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (m *mockDDB) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if m.createTableFn != nil {
		return m.createTableFn(ctx, input, opts...)
	}
	return &dynamodb.CreateTableOutput{}, nil
}

func (m *mockDDB) UpdateTimeToLive(ctx context.Context, input *dynamodb.UpdateTimeToLiveInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	if m.updateTTLFn != nil {
		return m.updateTTLFn(ctx, input, opts...)
	}
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

func newTestStore(mock *mockDDB) *DynamoDBStore {
	return &DynamoDBStore{
		client:       mock,
		tableName:    "test-table",
		logger:       slog.Default(),
		retentionTTL: 30 * 24 * time.Hour,
	}
}

func testExecution() types.SuiteExecution {
	return types.SuiteExecution{
		ID:        "01J8ZJ3V9XWXNKJQ5M2R7T4E6A",
		SuiteName: "nightly",
		StartedAt: time.Date(2025, 8, 1, 3, 0, 0, 0, time.UTC),
		DagCount:  14,
	}
}

func TestPutExecution_DualWrite(t *testing.T) {
	var captured *dynamodb.TransactWriteItemsInput
	mock := &mockDDB{
		transactWriteItemFn: func(_ context.Context, input *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			captured = input
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}
	s := newTestStore(mock)

	exec := testExecution()
	if err := s.PutExecution(context.Background(), exec); err != nil {
		t.Fatalf("PutExecution: %v", err)
	}

	if captured == nil {
		t.Fatal("TransactWriteItems was not called")
	}
	if len(captured.TransactItems) != 2 {
		t.Fatalf("expected 2 transact items (truth + list copy), got %d", len(captured.TransactItems))
	}

	truth := captured.TransactItems[0].Put
	pk := truth.Item["PK"].(*ddbtypes.AttributeValueMemberS).Value
	sk := truth.Item["SK"].(*ddbtypes.AttributeValueMemberS).Value
	if pk != "EXEC#01J8ZJ3V9XWXNKJQ5M2R7T4E6A" {
		t.Errorf("truth PK = %q, want %q", pk, "EXEC#01J8ZJ3V9XWXNKJQ5M2R7T4E6A")
	}
	if sk != "RECORD" {
		t.Errorf("truth SK = %q, want %q", sk, "RECORD")
	}

	list := captured.TransactItems[1].Put
	listPK := list.Item["PK"].(*ddbtypes.AttributeValueMemberS).Value
	listSK := list.Item["SK"].(*ddbtypes.AttributeValueMemberS).Value
	if listPK != "SUITE#nightly" {
		t.Errorf("list PK = %q, want %q", listPK, "SUITE#nightly")
	}
	if !strings.HasPrefix(listSK, "EXEC#2025-08-01T03:00:00Z#") {
		t.Errorf("list SK = %q, want prefix %q", listSK, "EXEC#2025-08-01T03:00:00Z#")
	}

	// Verify data round-trips through JSON.
	dataStr := truth.Item["data"].(*ddbtypes.AttributeValueMemberS).Value
	var roundTrip types.SuiteExecution
	if err := json.Unmarshal([]byte(dataStr), &roundTrip); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if roundTrip.DagCount != 14 {
		t.Errorf("dagCount = %d, want 14", roundTrip.DagCount)
	}

	ttlAttr, ok := truth.Item["ttl"]
	if !ok {
		t.Fatal("expected ttl attribute on truth item")
	}
	if v := ttlAttr.(*ddbtypes.AttributeValueMemberN).Value; v == "" || v == "0" {
		t.Error("expected non-zero TTL value")
	}
}

func TestPutExecution_RequiresID(t *testing.T) {
	s := newTestStore(&mockDDB{})

	exec := testExecution()
	exec.ID = ""
	if err := s.PutExecution(context.Background(), exec); err == nil {
		t.Fatal("expected error for missing execution ID")
	}
}

func TestGetExecution_RoundTrip(t *testing.T) {
	exec := testExecution()
	data, _ := json.Marshal(exec)

	mock := &mockDDB{
		getItemFn: func(_ context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			pk := input.Key["PK"].(*ddbtypes.AttributeValueMemberS).Value
			if pk != "EXEC#"+exec.ID {
				t.Errorf("PK = %q, want %q", pk, "EXEC#"+exec.ID)
			}
			return &dynamodb.GetItemOutput{
				Item: map[string]ddbtypes.AttributeValue{
					"PK":   &ddbtypes.AttributeValueMemberS{Value: "EXEC#" + exec.ID},
					"SK":   &ddbtypes.AttributeValueMemberS{Value: "RECORD"},
					"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
				},
			}, nil
		},
	}
	s := newTestStore(mock)

	got, err := s.GetExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.SuiteName != "nightly" {
		t.Errorf("suiteName = %q, want %q", got.SuiteName, "nightly")
	}
}

func TestGetExecution_NotFound(t *testing.T) {
	mock := &mockDDB{
		getItemFn: func(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: nil}, nil
		},
	}
	s := newTestStore(mock)

	_, err := s.GetExecution(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestGetExecution_ExpiredTTL(t *testing.T) {
	exec := testExecution()
	data, _ := json.Marshal(exec)
	expiredTTL := fmt.Sprintf("%d", time.Now().Add(-1*time.Hour).Unix())

	mock := &mockDDB{
		getItemFn: func(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{
				Item: map[string]ddbtypes.AttributeValue{
					"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
					"ttl":  &ddbtypes.AttributeValueMemberN{Value: expiredTTL},
				},
			}, nil
		},
	}
	s := newTestStore(mock)

	_, err := s.GetExecution(context.Background(), exec.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got: %v", err)
	}
}

func TestListExecutions_UnmarshalsItems(t *testing.T) {
	first := testExecution()
	second := testExecution()
	second.ID = "01J8ZJ5B2QCFG8H3K9D1W6Y0PZ"
	data1, _ := json.Marshal(first)
	data2, _ := json.Marshal(second)

	mock := &mockDDB{
		queryFn: func(_ context.Context, input *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			pk := input.ExpressionAttributeValues[":pk"].(*ddbtypes.AttributeValueMemberS).Value
			if pk != "SUITE#nightly" {
				t.Errorf("query PK = %q, want %q", pk, "SUITE#nightly")
			}
			if input.ScanIndexForward == nil || *input.ScanIndexForward {
				t.Error("expected ScanIndexForward=false for newest-first ordering")
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]ddbtypes.AttributeValue{
					{"data": &ddbtypes.AttributeValueMemberS{Value: string(data2)}},
					{"data": &ddbtypes.AttributeValueMemberS{Value: string(data1)}},
				},
			}, nil
		},
	}
	s := newTestStore(mock)

	execs, err := s.ListExecutions(context.Background(), "nightly", 10)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 2 {
		t.Fatalf("len(execs) = %d, want 2", len(execs))
	}
	if execs[0].ID != second.ID {
		t.Errorf("execs[0].ID = %q, want %q", execs[0].ID, second.ID)
	}
}

func TestListExecutions_SkipsCorruptData(t *testing.T) {
	good := testExecution()
	goodData, _ := json.Marshal(good)

	mock := &mockDDB{
		queryFn: func(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]ddbtypes.AttributeValue{
					{"data": &ddbtypes.AttributeValueMemberS{Value: "not-json{{{"}},
					{"data": &ddbtypes.AttributeValueMemberS{Value: string(goodData)}},
				},
			}, nil
		},
	}
	s := newTestStore(mock)

	execs, err := s.ListExecutions(context.Background(), "nightly", 10)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("len(execs) = %d, want 1 (corrupt item should be skipped)", len(execs))
	}
}

func TestEnsureTable_AlreadyExists(t *testing.T) {
	mock := &mockDDB{
		createTableFn: func(_ context.Context, _ *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			return nil, &ddbtypes.ResourceInUseException{Message: strPtr("already exists")}
		},
	}
	s := newTestStore(mock)

	if err := s.ensureTable(context.Background()); err != nil {
		t.Fatalf("ensureTable should ignore ResourceInUseException, got: %v", err)
	}
}

func TestPing_PropagatesError(t *testing.T) {
	mock := &mockDDB{
		describeTableFn: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, fmt.Errorf("table not found")
		},
	}
	s := newTestStore(mock)

	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error from Ping")
	}
}

func strPtr(s string) *string { return &s }
