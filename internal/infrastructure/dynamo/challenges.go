package dynamo

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-ledger/internal/domain"
)

// challengeItem is the persisted form of a challenge.
// Timestamps are Unix milliseconds so condition expressions can compare them numerically.
type challengeItem struct {
	SubjectEmail string `dynamodbav:"subject_email"`
	CodeHash     string `dynamodbav:"code_hash"`
	IssuedAt     int64  `dynamodbav:"issued_at"`
	ExpiresAt    int64  `dynamodbav:"expires_at"`
	Consumed     bool   `dynamodbav:"consumed"`
	TTL          int64  `dynamodbav:"ttl"` // DynamoDB TTL (Unix seconds)
}

func toChallengeItem(c *domain.OtpChallenge, retention time.Duration) challengeItem {
	return challengeItem{
		SubjectEmail: c.SubjectEmail,
		CodeHash:     c.CodeHash,
		IssuedAt:     c.IssuedAt.UnixMilli(),
		ExpiresAt:    c.ExpiresAt.UnixMilli(),
		Consumed:     c.Consumed,
		TTL:          c.ExpiresAt.Add(retention).Unix(),
	}
}

func (ci challengeItem) toDomain() *domain.OtpChallenge {
	return &domain.OtpChallenge{
		SubjectEmail: ci.SubjectEmail,
		CodeHash:     ci.CodeHash,
		IssuedAt:     time.UnixMilli(ci.IssuedAt).UTC(),
		ExpiresAt:    time.UnixMilli(ci.ExpiresAt).UTC(),
		Consumed:     ci.Consumed,
	}
}

// ChallengeRepo stores at most one OTP challenge per email.
// PK: subject_email, so Replace is a single atomic overwrite.
type ChallengeRepo struct {
	client    API
	tableName string
	retention time.Duration
}

// NewChallengeRepo builds the repo. retention is how long after expiry the
// item is kept before DynamoDB TTL may remove it.
func NewChallengeRepo(client API, tableName string, retention time.Duration) *ChallengeRepo {
	return &ChallengeRepo{client: client, tableName: tableName, retention: retention}
}

// Replace writes c, discarding whatever challenge the email held before.
func (r *ChallengeRepo) Replace(ctx context.Context, c *domain.OtpChallenge) error {
	item, err := attributevalue.MarshalMap(toChallengeItem(c, r.retention))
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ChallengeRepo) Get(ctx context.Context, email string) (*domain.OtpChallenge, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldSubjectEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	var ci challengeItem
	if err := attributevalue.UnmarshalMap(out.Item, &ci); err != nil {
		return nil, err
	}
	return ci.toDomain(), nil
}

// Consume marks the email's challenge consumed if and only if its hash matches,
// it is unconsumed and it has not expired at now. The check and the write are a
// single conditional update, so concurrent callers cannot both succeed.
func (r *ChallengeRepo) Consume(ctx context.Context, email, codeHash string, now time.Time) (domain.VerificationResult, error) {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldSubjectEmail, email),
		UpdateExpression:    aws.String("SET #consumed = :true"),
		ConditionExpression: aws.String("#hash = :hash AND #consumed = :false AND #exp >= :now"),
		ExpressionAttributeNames: map[string]string{
			"#consumed": fieldConsumed,
			"#hash":     fieldCodeHash,
			"#exp":      fieldExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  boolValue(true),
			":false": boolValue(false),
			":hash":  &types.AttributeValueMemberS{Value: codeHash},
			":now":   numValue(now.UnixMilli()),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return domain.VerificationAccepted, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return classifyConsumeFailure(ccf.Item, codeHash, now)
	}
	return domain.VerificationInvalidOrNotFound, err
}

// classifyConsumeFailure decides why a conditional consume was rejected, using
// the item DynamoDB returned alongside the failure.
func classifyConsumeFailure(item map[string]types.AttributeValue, codeHash string, now time.Time) (domain.VerificationResult, error) {
	if len(item) == 0 {
		return domain.VerificationInvalidOrNotFound, nil
	}
	var ci challengeItem
	if err := attributevalue.UnmarshalMap(item, &ci); err != nil {
		return domain.VerificationInvalidOrNotFound, fmt.Errorf("unmarshal challenge: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(ci.CodeHash), []byte(codeHash)) != 1 || ci.Consumed {
		return domain.VerificationInvalidOrNotFound, nil
	}
	if ci.toDomain().Expired(now) {
		return domain.VerificationExpired, nil
	}
	return domain.VerificationInvalidOrNotFound, nil
}

// DeleteExpired removes challenges whose expiry is before cutoff and returns how
// many were deleted. Each delete re-checks the expiry, so a challenge re-issued
// between the scan and the delete survives.
func (r *ChallengeRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	cutoffVal := numValue(cutoff.UnixMilli())
	input := &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          aws.String("#exp < :cutoff"),
		ProjectionExpression:      aws.String("#pk"),
		ExpressionAttributeNames:  map[string]string{"#exp": fieldExpiresAt, "#pk": fieldSubjectEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":cutoff": cutoffVal},
	}

	deleted := 0
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return deleted, err
		}
		for _, item := range out.Items {
			pk, ok := item[fieldSubjectEmail].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(r.tableName),
				Key:                       strKey(fieldSubjectEmail, pk.Value),
				ConditionExpression:       aws.String("#exp < :cutoff"),
				ExpressionAttributeNames:  map[string]string{"#exp": fieldExpiresAt},
				ExpressionAttributeValues: map[string]types.AttributeValue{":cutoff": cutoffVal},
			})
			var ccf *types.ConditionalCheckFailedException
			switch {
			case err == nil:
				deleted++
			case errors.As(err, &ccf):
				// re-issued since the scan
			default:
				return deleted, err
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return deleted, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
