package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"cstore-agent/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func sAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %s", key)
	return v.Value
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	require.ErrorContains(t, err, "must not be nil")

	_, err = New(&fakeDynamo{}, " ")
	require.ErrorContains(t, err, "table name")
}

func TestClaimCharge_FirstClaimWins(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	claimed, prev, err := c.ClaimCharge(context.Background(), "abc123", 11)
	require.NoError(t, err)
	require.True(t, claimed)
	require.Empty(t, prev)

	in := db.lastPutInput
	require.Equal(t, "test-table", aws.ToString(in.TableName))
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", aws.ToString(in.ConditionExpression))
	require.Equal(t, "BASKET#abc123", sAttr(t, in.Item, "PK"))
	require.Equal(t, skCheckout, sAttr(t, in.Item, "SK"))
	require.Equal(t, "CHARGE_CONFIRMED", sAttr(t, in.Item, "state"))
	require.Equal(t, "2026-03-01T12:00:00Z", sAttr(t, in.Item, "updatedAt"))
	require.Equal(t, "11.00", in.Item["total"].(*types.AttributeValueMemberN).Value)
	require.NotContains(t, in.Item, "orderId")
}

func conditionFailed() error {
	return fmt.Errorf("operation error: %w", &types.ConditionalCheckFailedException{Message: aws.String("exists")})
}

func TestClaimCharge_AlreadySubmitted(t *testing.T) {
	db := &fakeDynamo{
		putErr: conditionFailed(),
		getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"PK":       &types.AttributeValueMemberS{Value: "BASKET#abc123"},
			"SK":       &types.AttributeValueMemberS{Value: skCheckout},
			"basketId": &types.AttributeValueMemberS{Value: "abc123"},
			"state":    &types.AttributeValueMemberS{Value: "ORDER_SUBMITTED"},
			"orderId":  &types.AttributeValueMemberS{Value: "42"},
			"total":    &types.AttributeValueMemberN{Value: "11.00"},
		}},
	}
	c := mustNewClient(t, db)

	claimed, prev, err := c.ClaimCharge(context.Background(), "abc123", 11)
	require.NoError(t, err)
	require.False(t, claimed)
	require.Equal(t, domain.CheckoutOrderSubmitted, prev)
	require.Equal(t, "BASKET#abc123", db.lastGetInput.Key["PK"].(*types.AttributeValueMemberS).Value)
}

func TestClaimCharge_ClaimedWithoutOrder(t *testing.T) {
	db := &fakeDynamo{
		putErr: conditionFailed(),
		getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"PK":       &types.AttributeValueMemberS{Value: "BASKET#abc123"},
			"SK":       &types.AttributeValueMemberS{Value: skCheckout},
			"basketId": &types.AttributeValueMemberS{Value: "abc123"},
			"state":    &types.AttributeValueMemberS{Value: "CHARGE_CONFIRMED"},
			"total":    &types.AttributeValueMemberN{Value: "11.00"},
		}},
	}
	c := mustNewClient(t, db)

	claimed, prev, err := c.ClaimCharge(context.Background(), "abc123", 11)
	require.NoError(t, err)
	require.False(t, claimed)
	require.Equal(t, domain.CheckoutChargeConfirmed, prev)
}

func TestClaimCharge_ClaimExpiredBeforeRead(t *testing.T) {
	db := &fakeDynamo{putErr: conditionFailed(), getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)

	claimed, prev, err := c.ClaimCharge(context.Background(), "abc123", 11)
	require.NoError(t, err)
	require.False(t, claimed)
	require.Equal(t, domain.CheckoutChargeConfirmed, prev)
}

func TestClaimCharge_ReadAfterConflictFails(t *testing.T) {
	db := &fakeDynamo{putErr: conditionFailed(), getErr: errors.New("throttled")}
	c := mustNewClient(t, db)

	_, _, err := c.ClaimCharge(context.Background(), "abc123", 11)
	require.ErrorContains(t, err, "ClaimCharge")
}

func TestClaimCharge_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)

	_, _, err := c.ClaimCharge(context.Background(), "abc123", 11)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ClaimCharge")
}

func TestClaimCharge_MissingBasketID(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, _, err := c.ClaimCharge(context.Background(), "", 1)
	require.Error(t, err)
	require.Nil(t, db.lastPutInput)
}

func TestMarkSubmitted_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.MarkSubmitted(context.Background(), "abc123", "42", 6.5))
	in := db.lastPutInput
	require.Equal(t, "attribute_exists(PK)", aws.ToString(in.ConditionExpression))
	require.Equal(t, "ORDER_SUBMITTED", sAttr(t, in.Item, "state"))
	require.Equal(t, "42", sAttr(t, in.Item, "orderId"))
	require.Equal(t, "6.50", in.Item["total"].(*types.AttributeValueMemberN).Value)
}

func TestMarkSubmitted_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("internal server error")}
	c := mustNewClient(t, db)

	err := c.MarkSubmitted(context.Background(), "abc123", "42", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "MarkSubmitted")
}

func TestGet_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":       &types.AttributeValueMemberS{Value: "BASKET#abc123"},
		"SK":       &types.AttributeValueMemberS{Value: skCheckout},
		"basketId": &types.AttributeValueMemberS{Value: "abc123"},
		"state":    &types.AttributeValueMemberS{Value: "ORDER_SUBMITTED"},
		"orderId":  &types.AttributeValueMemberS{Value: "42"},
		"total":    &types.AttributeValueMemberN{Value: "11.00"},
	}}}
	c := mustNewClient(t, db)

	entry, ok, err := c.Get(context.Background(), "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.CheckoutOrderSubmitted, entry.State)
	require.Equal(t, "42", entry.OrderID)
	require.Equal(t, 11.0, entry.Total)
	require.True(t, aws.ToBool(db.lastGetInput.ConsistentRead))
}

func TestGet_Missing(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{}})
	_, ok, err := c.Get(context.Background(), "abc123")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGet_MalformedTotal(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":    &types.AttributeValueMemberS{Value: "BASKET#abc123"},
		"SK":    &types.AttributeValueMemberS{Value: skCheckout},
		"state": &types.AttributeValueMemberS{Value: "CHARGE_CONFIRMED"},
		"total": &types.AttributeValueMemberS{Value: "bad"},
	}}}
	c := mustNewClient(t, db)
	_, _, err := c.Get(context.Background(), "abc123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}

func TestGet_DynamoError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getErr: errors.New("boom")})
	_, _, err := c.Get(context.Background(), "abc123")
	require.ErrorContains(t, err, "boom")
}
