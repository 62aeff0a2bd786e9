package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// DoctorDateIndex is the GSI on the bookings table keyed by doctor_date.
const DoctorDateIndex = "doctor_date-index"

type dynamoAPI interface {
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type dynamoBooking struct {
	Booking
	DoctorDate string `dynamodbav:"doctor_date"`
}

// DynamoStore keeps bookings in one table and slot claims in another. A
// booking and its claim are written in a single transaction; the claim put is
// conditional on the slot key not existing, which makes reservation atomic.
type DynamoStore struct {
	client        dynamoAPI
	bookingsTable string
	claimsTable   string
	logger        *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client dynamoAPI, bookingsTable, claimsTable string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("bookings: dynamodb client cannot be nil")
	}
	if bookingsTable == "" || claimsTable == "" {
		panic("bookings: table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{client: client, bookingsTable: bookingsTable, claimsTable: claimsTable, logger: logger}
}

func (s *DynamoStore) Create(ctx context.Context, b *Booking) error {
	item, err := s.marshal(b)
	if err != nil {
		return err
	}
	var items []types.TransactWriteItem
	if b.Occupying() {
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.claimsTable),
			Item:                claimItem(b),
			ConditionExpression: aws.String("attribute_not_exists(slot_key)"),
		}})
	}
	items = append(items, types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(s.bookingsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	}})

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	if b.Occupying() && conditionFailedAt(err, 0) {
		return ErrSlotConflict
	}
	return fmt.Errorf("bookings: dynamodb create: %w", err)
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*Booking, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.bookingsTable),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("bookings: dynamodb get %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var rec dynamoBooking
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("bookings: unmarshal %s: %w", id, err)
	}
	return &rec.Booking, nil
}

func (s *DynamoStore) ListForDoctorDate(ctx context.Context, doctorID, date string) ([]*Booking, error) {
	var (
		out   []*Booking
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.bookingsTable),
			IndexName:              aws.String(DoctorDateIndex),
			KeyConditionExpression: aws.String("doctor_date = :k"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":k": &types.AttributeValueMemberS{Value: doctorDateKey(doctorID, date)},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("bookings: dynamodb query: %w", err)
		}
		decoded, err := unmarshalBookings(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}
	sortBookings(out)
	return out, nil
}

// List serves the back-office. Without a doctor and date it scans the table.
func (s *DynamoStore) List(ctx context.Context, filter ListFilter) ([]*Booking, error) {
	var candidates []*Booking
	if filter.DoctorID != "" && filter.Date != "" {
		list, err := s.ListForDoctorDate(ctx, filter.DoctorID, filter.Date)
		if err != nil {
			return nil, err
		}
		candidates = list
	} else {
		var start map[string]types.AttributeValue
		for {
			page, err := s.client.Scan(ctx, &dynamodb.ScanInput{
				TableName:         aws.String(s.bookingsTable),
				ExclusiveStartKey: start,
			})
			if err != nil {
				return nil, fmt.Errorf("bookings: dynamodb scan: %w", err)
			}
			decoded, err := unmarshalBookings(page.Items)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, decoded...)
			if len(page.LastEvaluatedKey) == 0 {
				break
			}
			start = page.LastEvaluatedKey
		}
	}

	var out []*Booking
	for _, b := range candidates {
		if filter.matches(b) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (s *DynamoStore) Update(ctx context.Context, b *Booking, expected Status) error {
	item, err := s.marshal(b)
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{{Put: &types.Put{
		TableName:                aws.String(s.bookingsTable),
		Item:                     item,
		ConditionExpression:      aws.String("#status = :expected"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		},
	}}}
	if availability.IsOccupying(expected) && !b.Occupying() {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName:           aws.String(s.claimsTable),
			Key:                 map[string]types.AttributeValue{"slot_key": &types.AttributeValueMemberS{Value: b.SlotKey()}},
			ConditionExpression: aws.String("booking_id = :id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":id": &types.AttributeValueMemberS{Value: b.ID},
			},
		}})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	if conditionFailedAt(err, 0) {
		if _, getErr := s.Get(ctx, b.ID); getErr != nil {
			return getErr
		}
		return ErrConcurrentUpdate
	}
	if conditionFailedAt(err, 1) {
		s.logger.Warn("slot claim owned by another booking", "booking_id", b.ID, "slot_key", b.SlotKey())
	}
	return fmt.Errorf("bookings: dynamodb update %s: %w", b.ID, err)
}

func (s *DynamoStore) marshal(b *Booking) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(dynamoBooking{Booking: *b, DoctorDate: doctorDateKey(b.DoctorID, b.Date)})
	if err != nil {
		return nil, fmt.Errorf("bookings: marshal %s: %w", b.ID, err)
	}
	return item, nil
}

func claimItem(b *Booking) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"slot_key":   &types.AttributeValueMemberS{Value: b.SlotKey()},
		"booking_id": &types.AttributeValueMemberS{Value: b.ID},
		"claimed_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
}

func unmarshalBookings(items []map[string]types.AttributeValue) ([]*Booking, error) {
	var recs []dynamoBooking
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, fmt.Errorf("bookings: unmarshal page: %w", err)
	}
	out := make([]*Booking, 0, len(recs))
	for i := range recs {
		out = append(out, &recs[i].Booking)
	}
	return out, nil
}

// conditionFailedAt reports whether the transaction was cancelled because the
// condition of item index failed.
func conditionFailedAt(err error, index int) bool {
	var cancelled *types.TransactionCanceledException
	if !errors.As(err, &cancelled) {
		return false
	}
	if index >= len(cancelled.CancellationReasons) {
		return false
	}
	return aws.ToString(cancelled.CancellationReasons[index].Code) == "ConditionalCheckFailed"
}

func doctorDateKey(doctorID, date string) string {
	return doctorID + "#" + date
}
