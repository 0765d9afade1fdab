package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// DynamoDB secondary indexes expected on the notifications table.
const (
	dynamoAppointmentIndex = "appointmentId-index"
	dynamoPatientIndex     = "patientId-index"
	dynamoDueIndex         = "pendingBucket-readyAt-index"

	// pendingBucket is only set while a reminder is pending and not
	// exhausted, keeping the due index sparse. readyAt is the due time until
	// a failed attempt pushes it back.
	pendingBucket = "pending"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type dynamoRecord struct {
	ID            string `dynamodbav:"id"`
	OrgID         string `dynamodbav:"orgId"`
	PatientID     string `dynamodbav:"patientId"`
	AppointmentID string `dynamodbav:"appointmentId,omitempty"`
	Type          string `dynamodbav:"type"`
	Channel       string `dynamodbav:"channel"`
	Content       string `dynamodbav:"content"`
	SentAt        string `dynamodbav:"sentAt"`
	Status        string `dynamodbav:"status"`
	DueAt         string `dynamodbav:"dueAt,omitempty"`
	PendingBucket string `dynamodbav:"pendingBucket,omitempty"`
	ReadyAt       string `dynamodbav:"readyAt,omitempty"`
	TextSource    string `dynamodbav:"textSource"`
	CreatedAt     string `dynamodbav:"createdAt"`
	Attempts      int    `dynamodbav:"attempts,omitempty"`
	LastError     string `dynamodbav:"lastError,omitempty"`
	NextAttemptAt string `dynamodbav:"nextAttemptAt,omitempty"`
	Exhausted     bool   `dynamodbav:"exhausted,omitempty"`
}

// DynamoStore persists notifications to DynamoDB.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("notify: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("notify: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{client: client, tableName: tableName, logger: logger}
}

func (s *DynamoStore) Create(ctx context.Context, n *Notification) error {
	item, err := attributevalue.MarshalMap(toDynamo(n))
	if err != nil {
		return fmt.Errorf("notify: marshal notification: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("notify: put notification: %w", err)
	}
	return nil
}

func (s *DynamoStore) ListByAppointment(ctx context.Context, appointmentID string) ([]*Notification, error) {
	out, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(dynamoAppointmentIndex),
		KeyConditionExpression: aws.String("appointmentId = :a"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":a": &types.AttributeValueMemberS{Value: appointmentID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notify: list by appointment: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *DynamoStore) ListByPatient(ctx context.Context, patientID string) ([]*Notification, error) {
	out, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(dynamoPatientIndex),
		KeyConditionExpression: aws.String("patientId = :p"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: patientID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notify: list by patient: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *DynamoStore) DeletePendingByAppointment(ctx context.Context, appointmentID string) (int, error) {
	items, err := s.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, n := range items {
		if n.Status != StatusPending {
			continue
		}
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:           aws.String(s.tableName),
			Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: n.ID}},
			ConditionExpression: aws.String("#status = :pending"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pending": &types.AttributeValueMemberS{Value: string(StatusPending)},
			},
		})
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("notify: delete pending %s: %w", n.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (s *DynamoStore) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(dynamoDueIndex),
		KeyConditionExpression: aws.String("pendingBucket = :b AND readyAt <= :asOf"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b":    &types.AttributeValueMemberS{Value: pendingBucket},
			":asOf": &types.AttributeValueMemberS{Value: asOf.UTC().Format(time.RFC3339)},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("notify: list due: %w", err)
	}
	items, err := decodeItems(out.Items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return dueTime(items[i]).Before(dueTime(items[j])) })
	return items, nil
}

func dueTime(n *Notification) time.Time {
	if n.DueAt == nil {
		return time.Time{}
	}
	return *n.DueAt
}

func (s *DynamoStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:    aws.String("SET #status = :sent, sentAt = :at REMOVE pendingBucket"),
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sent":    &types.AttributeValueMemberS{Value: string(StatusSent)},
			":pending": &types.AttributeValueMemberS{Value: string(StatusPending)},
			":at":      &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("notify: mark sent: %w", err)
	}
	return nil
}

// MarkFailed records the attempt and moves readyAt to retryAt. A zero
// retryAt drops the reminder out of the due index.
func (s *DynamoStore) MarkFailed(ctx context.Context, id string, cause string, retryAt time.Time) error {
	values := map[string]types.AttributeValue{
		":pending": &types.AttributeValueMemberS{Value: string(StatusPending)},
		":zero":    &types.AttributeValueMemberN{Value: "0"},
		":one":     &types.AttributeValueMemberN{Value: "1"},
		":err":     &types.AttributeValueMemberS{Value: cause},
	}
	update := "SET attempts = if_not_exists(attempts, :zero) + :one, lastError = :err"
	if retryAt.IsZero() {
		update += ", exhausted = :true REMOVE pendingBucket, nextAttemptAt"
		values[":true"] = &types.AttributeValueMemberBOOL{Value: true}
	} else {
		update += ", nextAttemptAt = :next, readyAt = :next"
		values[":next"] = &types.AttributeValueMemberS{Value: retryAt.UTC().Format(time.RFC3339)}
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("#status = :pending"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("notify: mark failed: %w", err)
	}
	return nil
}

func (s *DynamoStore) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]*Notification, error) {
	var out []*Notification
	for {
		page, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		decoded, err := decodeItems(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

func decodeItems(items []map[string]types.AttributeValue) ([]*Notification, error) {
	out := make([]*Notification, 0, len(items))
	for _, item := range items {
		var rec dynamoRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("notify: decode notification: %w", err)
		}
		out = append(out, fromDynamo(rec))
	}
	return out, nil
}

func toDynamo(n *Notification) dynamoRecord {
	rec := dynamoRecord{
		ID:            n.ID,
		OrgID:         n.OrgID,
		PatientID:     n.PatientID,
		AppointmentID: n.AppointmentID,
		Type:          string(n.Type),
		Channel:       string(n.Channel),
		Content:       n.Content,
		SentAt:        n.SentAt,
		Status:        string(n.Status),
		TextSource:    string(n.TextSource),
		CreatedAt:     n.CreatedAt.UTC().Format(time.RFC3339Nano),
		Attempts:      n.Attempts,
		LastError:     n.LastError,
		Exhausted:     n.Exhausted,
	}
	if n.NextAttemptAt != nil {
		rec.NextAttemptAt = n.NextAttemptAt.UTC().Format(time.RFC3339)
	}
	if n.DueAt != nil {
		rec.DueAt = n.DueAt.UTC().Format(time.RFC3339)
		if n.Status == StatusPending && !n.Exhausted {
			rec.PendingBucket = pendingBucket
			rec.ReadyAt = n.readyAt().UTC().Format(time.RFC3339)
		}
	}
	return rec
}

func fromDynamo(rec dynamoRecord) *Notification {
	n := &Notification{
		ID:            rec.ID,
		OrgID:         rec.OrgID,
		PatientID:     rec.PatientID,
		AppointmentID: rec.AppointmentID,
		Type:          Type(rec.Type),
		Channel:       Channel(rec.Channel),
		Content:       rec.Content,
		SentAt:        rec.SentAt,
		Status:        Status(rec.Status),
		TextSource:    TextSource(rec.TextSource),
		Attempts:      rec.Attempts,
		LastError:     rec.LastError,
		Exhausted:     rec.Exhausted,
	}
	if rec.NextAttemptAt != "" {
		if t, err := time.Parse(time.RFC3339, rec.NextAttemptAt); err == nil {
			n.NextAttemptAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.CreatedAt); err == nil {
		n.CreatedAt = t
	}
	if rec.DueAt != "" {
		if t, err := time.Parse(time.RFC3339, rec.DueAt); err == nil {
			n.DueAt = &t
		}
	}
	return n
}
