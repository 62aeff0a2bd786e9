package bookings

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo evaluates the handful of condition expressions the store uses.
type fakeDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: map[string]map[string]map[string]types.AttributeValue{
		"bookings": {},
		"claims":   {},
	}}
}

func strAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func keyOf(table string, item map[string]types.AttributeValue) string {
	if table == "claims" {
		return strAttr(item, "slot_key")
	}
	return strAttr(item, "id")
}

func (f *fakeDynamo) conditionHolds(table string, existing map[string]types.AttributeValue, cond *string, values map[string]types.AttributeValue) bool {
	switch aws.ToString(cond) {
	case "":
		return true
	case "attribute_not_exists(slot_key)", "attribute_not_exists(id)":
		return existing == nil
	case "#status = :expected":
		return existing != nil && strAttr(existing, "status") == strAttr(values, ":expected")
	case "booking_id = :id":
		return existing != nil && strAttr(existing, "booking_id") == strAttr(values, ":id")
	}
	return false
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, item := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		var ok bool
		switch {
		case item.Put != nil:
			table := aws.ToString(item.Put.TableName)
			existing := f.tables[table][keyOf(table, item.Put.Item)]
			ok = f.conditionHolds(table, existing, item.Put.ConditionExpression, item.Put.ExpressionAttributeValues)
		case item.Delete != nil:
			table := aws.ToString(item.Delete.TableName)
			existing := f.tables[table][keyOf(table, item.Delete.Key)]
			ok = f.conditionHolds(table, existing, item.Delete.ConditionExpression, item.Delete.ExpressionAttributeValues)
		}
		if !ok {
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{Message: aws.String("cancelled"), CancellationReasons: reasons}
	}
	for _, item := range in.TransactItems {
		if item.Put != nil {
			table := aws.ToString(item.Put.TableName)
			f.tables[table][keyOf(table, item.Put.Item)] = item.Put.Item
		}
		if item.Delete != nil {
			table := aws.ToString(item.Delete.TableName)
			delete(f.tables[table], keyOf(table, item.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	return &dynamodb.GetItemOutput{Item: f.tables[table][keyOf(table, in.Key)]}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := strAttr(in.ExpressionAttributeValues, ":k")
	var items []map[string]types.AttributeValue
	for _, item := range f.tables[aws.ToString(in.TableName)] {
		if strAttr(item, "doctor_date") == want {
			items = append(items, item)
		}
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []map[string]types.AttributeValue
	for _, item := range f.tables[aws.ToString(in.TableName)] {
		items = append(items, item)
	}
	return &dynamodb.ScanOutput{Items: items}, nil
}

func TestDynamoStoreCreateClaimsSlot(t *testing.T) {
	client := newFakeDynamo()
	store := NewDynamoStore(client, "bookings", "claims", nil)
	ctx := context.Background()

	first := sampleBooking("b1", "09:30", StatusPending)
	first.Patient = Patient{Name: "Asha", Email: "asha@example.com"}
	require.NoError(t, store.Create(ctx, first))
	assert.ErrorIs(t, store.Create(ctx, sampleBooking("b2", "09:30", StatusPending)), ErrSlotConflict)
	assert.Len(t, client.tables["bookings"], 1)

	got, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Patient.Name)
	assert.Equal(t, "09:30", got.Time)

	list, err := store.ListForDoctorDate(ctx, "d1", "2025-03-03")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b1", list[0].ID)
}

func TestDynamoStoreCancelReleasesClaim(t *testing.T) {
	client := newFakeDynamo()
	store := NewDynamoStore(client, "bookings", "claims", nil)
	ctx := context.Background()

	b := sampleBooking("b1", "09:30", StatusConfirmed)
	require.NoError(t, store.Create(ctx, b))

	b.Status = StatusCancelled
	require.NoError(t, store.Update(ctx, b, StatusConfirmed))
	assert.Empty(t, client.tables["claims"])

	require.NoError(t, store.Create(ctx, sampleBooking("b2", "09:30", StatusPending)))
}

func TestDynamoStoreUpdateStaleStatus(t *testing.T) {
	store := NewDynamoStore(newFakeDynamo(), "bookings", "claims", nil)
	ctx := context.Background()
	b := sampleBooking("b1", "09:30", StatusPending)
	require.NoError(t, store.Create(ctx, b))

	b.Status = StatusPaid
	assert.ErrorIs(t, store.Update(ctx, b, StatusConfirmed), ErrConcurrentUpdate)
	assert.ErrorIs(t, store.Update(ctx, sampleBooking("ghost", "10:00", StatusPaid), StatusPending), ErrNotFound)
}

func TestDynamoStoreGetMissing(t *testing.T) {
	store := NewDynamoStore(newFakeDynamo(), "bookings", "claims", nil)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoStoreListScansAndFilters(t *testing.T) {
	store := NewDynamoStore(newFakeDynamo(), "bookings", "claims", nil)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &Booking{ID: "1", DoctorID: "d1", Date: "2025-03-01", Time: "09:00", Status: StatusPaid}))
	require.NoError(t, store.Create(ctx, &Booking{ID: "2", DoctorID: "d2", Date: "2025-03-02", Time: "09:00", Status: StatusPaid}))

	got, err := store.List(ctx, ListFilter{DoctorID: "d2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}
