package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/amillerrr/video2music/pkg/models"
)

// TimeLayout is fixed width so GSI1 sort keys order lexically by time.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

const (
	metadataSK = "METADATA"
	userIndex  = "GSI1"
)

// DynamoDBAPI is the subset of the DynamoDB client the repository uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// RequestRepository stores processing requests and their job records in a
// single DynamoDB table.
type RequestRepository struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
}

// NewRequest holds the caller-supplied fields of a new processing request.
type NewRequest struct {
	UserID         string
	VideoFilename  string
	VideoURL       string
	Description    string
	MusicYearStart int
	MusicYearEnd   int
}

// StatusUpdate describes a lifecycle transition.
type StatusUpdate struct {
	Status       models.RequestStatus
	Result       *models.ProcessingResult
	ErrorMessage string
}

// NewJob holds the fields of a new job record.
type NewJob struct {
	RequestID     string
	VideoFilename string
	Priority      int
}

// JobUpdate describes a job status change.
type JobUpdate struct {
	Status       models.JobStatus
	ErrorMessage string
}

// NewRequestRepository creates a repository over client.
func NewRequestRepository(client DynamoDBAPI, tableName string) *RequestRepository {
	return &RequestRepository{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewRequestRepositoryFromConfig creates a repository from a loaded AWS config.
func NewRequestRepositoryFromConfig(awsCfg aws.Config, tableName string) (*RequestRepository, error) {
	if tableName == "" {
		return nil, errors.New("DynamoDB table name is required")
	}
	return NewRequestRepository(dynamodb.NewFromConfig(awsCfg), tableName), nil
}

func requestKey(requestID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: "REQUEST#" + requestID},
		"sk": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

func jobKey(requestID, jobID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: "REQUEST#" + requestID},
		"sk": &types.AttributeValueMemberS{Value: "JOB#" + jobID},
	}
}

func (r *RequestRepository) timestamp() string {
	return r.now().UTC().Format(TimeLayout)
}

// CreateRequest inserts a new request in pending status.
func (r *RequestRepository) CreateRequest(ctx context.Context, in NewRequest) (*models.ProcessingRequest, error) {
	now := r.timestamp()
	id := uuid.New().String()

	if in.MusicYearStart == 0 {
		in.MusicYearStart = models.DefaultYearStart
	}
	if in.MusicYearEnd == 0 {
		in.MusicYearEnd = models.DefaultYearEnd
	}

	req := &models.ProcessingRequest{
		PK:             "REQUEST#" + id,
		SK:             metadataSK,
		GSI1PK:         "USER#" + in.UserID,
		GSI1SK:         fmt.Sprintf("%s#%s", now, id),
		ID:             id,
		UserID:         in.UserID,
		VideoFilename:  in.VideoFilename,
		VideoURL:       in.VideoURL,
		Status:         models.StatusPending,
		Description:    in.Description,
		MusicYearStart: in.MusicYearStart,
		MusicYearEnd:   in.MusicYearEnd,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, fmt.Errorf("request already exists: %s", id)
		}
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return req, nil
}

// GetRequestByID retrieves a request without an ownership check. It always
// performs a consistent read.
func (r *RequestRepository) GetRequestByID(ctx context.Context, requestID string) (*models.ProcessingRequest, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            requestKey(requestID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	if result.Item == nil {
		return nil, models.ErrRequestNotFound
	}

	var req models.ProcessingRequest
	if err := attributevalue.UnmarshalMap(result.Item, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}

	return &req, nil
}

// GetRequest retrieves a request owned by userID. Requests owned by someone
// else are reported as not found.
func (r *RequestRepository) GetRequest(ctx context.Context, requestID, userID string) (*models.ProcessingRequest, error) {
	req, err := r.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, models.ErrRequestNotFound
	}
	return req, nil
}

// ListRequests returns every request owned by userID, newest first.
func (r *RequestRepository) ListRequests(ctx context.Context, userID string) ([]models.ProcessingRequest, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(userIndex),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "USER#" + userID},
		},
		ScanIndexForward: aws.Bool(false), // newest first
	})

	requests := []models.ProcessingRequest{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list requests: %w", err)
		}

		var batch []models.ProcessingRequest
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal requests: %w", err)
		}
		requests = append(requests, batch...)
	}

	return requests, nil
}

// UpdateRequestStatus applies a lifecycle transition. The current row is read
// fresh first; the write itself is last-write-wins.
//
// completed_at and result are written only for completed, error_message only
// for failed. Any stale value of those attributes is removed.
func (r *RequestRepository) UpdateRequestStatus(ctx context.Context, requestID string, u StatusUpdate) error {
	if !u.Status.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidStatus, u.Status)
	}
	if u.Status == models.StatusCompleted && u.Result == nil {
		return fmt.Errorf("%w: completed requires a result", models.ErrInvalidStatus)
	}
	if u.Status == models.StatusFailed && u.ErrorMessage == "" {
		return fmt.Errorf("%w: failed requires an error message", models.ErrInvalidStatus)
	}

	current, err := r.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if !current.Status.CanTransitionTo(u.Status) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current.Status, u.Status)
	}

	now := r.timestamp()
	set := []string{"#status = :status", "updated_at = :updated_at"}
	var remove []string
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":status":     &types.AttributeValueMemberS{Value: string(u.Status)},
		":updated_at": &types.AttributeValueMemberS{Value: now},
	}

	switch u.Status {
	case models.StatusCompleted:
		resultAV, err := attributevalue.Marshal(u.Result.Normalize())
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		names["#result"] = "result"
		values[":result"] = resultAV
		values[":completed_at"] = &types.AttributeValueMemberS{Value: now}
		set = append(set, "#result = :result", "completed_at = :completed_at")
		remove = append(remove, "error_message")
	case models.StatusFailed:
		names["#result"] = "result"
		values[":error"] = &types.AttributeValueMemberS{Value: u.ErrorMessage}
		set = append(set, "error_message = :error")
		remove = append(remove, "#result", "completed_at")
	default:
		names["#result"] = "result"
		remove = append(remove, "#result", "completed_at", "error_message")
	}

	expr := "SET " + strings.Join(set, ", ")
	if len(remove) > 0 {
		expr += " REMOVE " + strings.Join(remove, ", ")
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       requestKey(requestID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return models.ErrRequestNotFound
		}
		return fmt.Errorf("failed to update request: %w", err)
	}

	return nil
}

// CreateJob inserts a queued job record for a request.
func (r *RequestRepository) CreateJob(ctx context.Context, in NewJob) (*models.ProcessingJob, error) {
	now := r.timestamp()
	id := uuid.New().String()

	job := &models.ProcessingJob{
		PK:            "REQUEST#" + in.RequestID,
		SK:            "JOB#" + id,
		ID:            id,
		RequestID:     in.RequestID,
		VideoFilename: in.VideoFilename,
		Status:        models.JobQueued,
		Priority:      in.Priority,
		MaxRetries:    models.DefaultMaxRetries,
		ScheduledAt:   now,
	}

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(sk)"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// UpdateJob records a job status change and its timestamps.
func (r *RequestRepository) UpdateJob(ctx context.Context, requestID, jobID string, u JobUpdate) error {
	now := r.timestamp()
	set := []string{"#status = :status"}
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(u.Status)},
	}

	switch u.Status {
	case models.JobRunning:
		set = append(set, "started_at = :now")
		values[":now"] = &types.AttributeValueMemberS{Value: now}
	case models.JobCompleted:
		set = append(set, "completed_at = :now")
		values[":now"] = &types.AttributeValueMemberS{Value: now}
	case models.JobFailed:
		set = append(set, "completed_at = :now", "error_message = :error")
		values[":now"] = &types.AttributeValueMemberS{Value: now}
		values[":error"] = &types.AttributeValueMemberS{Value: u.ErrorMessage}
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       jobKey(requestID, jobID),
		UpdateExpression:          aws.String("SET " + strings.Join(set, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return models.ErrJobNotFound
		}
		return fmt.Errorf("failed to update job: %w", err)
	}

	return nil
}

// GetJob retrieves a job record.
func (r *RequestRepository) GetJob(ctx context.Context, requestID, jobID string) (*models.ProcessingJob, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       jobKey(requestID, jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if result.Item == nil {
		return nil, models.ErrJobNotFound
	}

	var job models.ProcessingJob
	if err := attributevalue.UnmarshalMap(result.Item, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
