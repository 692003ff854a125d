package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-ledger/internal/domain"
)

// AttemptRepo is an append-only store for login and OTP attempt records.
// Both tables use PK: attempt_id and GSI subject_email-attempt_id-index.
type AttemptRepo struct {
	client     API
	loginTable string
	otpTable   string
}

func NewAttemptRepo(client API, loginTable, otpTable string) *AttemptRepo {
	return &AttemptRepo{client: client, loginTable: loginTable, otpTable: otpTable}
}

func (r *AttemptRepo) AppendLogin(ctx context.Context, a *domain.LoginAttempt) error {
	return r.insert(ctx, r.loginTable, a)
}

func (r *AttemptRepo) AppendOtp(ctx context.Context, a *domain.OtpAttempt) error {
	return r.insert(ctx, r.otpTable, a)
}

// insert writes v only if no record with the same attempt_id exists.
// Records are never overwritten.
func (r *AttemptRepo) insert(ctx context.Context, table string, v interface{}) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldAttemptID},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("attempt already recorded: %w", domain.ErrConflict)
	}
	return err
}

// ListLoginBySubject returns up to limit login attempts for email, newest first.
func (r *AttemptRepo) ListLoginBySubject(ctx context.Context, email string, limit int32) ([]domain.LoginAttempt, error) {
	items, err := r.queryBySubject(ctx, r.loginTable, email, limit)
	if err != nil {
		return nil, err
	}
	var out []domain.LoginAttempt
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOtpBySubject returns up to limit OTP attempts for email, newest first.
func (r *AttemptRepo) ListOtpBySubject(ctx context.Context, email string, limit int32) ([]domain.OtpAttempt, error) {
	items, err := r.queryBySubject(ctx, r.otpTable, email, limit)
	if err != nil {
		return nil, err
	}
	var out []domain.OtpAttempt
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AttemptRepo) queryBySubject(ctx context.Context, table, email string, limit int32) ([]map[string]types.AttributeValue, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(indexSubjectEmailAttempt),
		KeyConditionExpression:    aws.String("#s = :s"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldSubjectEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":s": &types.AttributeValueMemberS{Value: email}},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(limit),
	})
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}
