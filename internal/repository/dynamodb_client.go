package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"cstore-agent/internal/domain"
)

const (
	skCheckout  = "CHECKOUT#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client records the checkout state of each basket in a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// basketPK returns the DynamoDB partition key for a basket.
func basketPK(basketID string) string {
	return "BASKET#" + basketID
}

// ClaimCharge records a confirmed charge for basketID. When the basket was
// already claimed it returns false with the state recorded by the earlier
// claim: CHARGE_CONFIRMED if no order was recorded for it yet,
// ORDER_SUBMITTED once one was.
func (c *Client) ClaimCharge(ctx context.Context, basketID string, total float64) (bool, domain.CheckoutState, error) {
	if strings.TrimSpace(basketID) == "" {
		return false, "", errors.New("repository: ClaimCharge: basket id is required")
	}

	entry := c.newEntry(basketID, domain.CheckoutChargeConfirmed, "", total)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                entryItem(entry),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err == nil {
		return true, "", nil
	}
	var condErr *types.ConditionalCheckFailedException
	if !errors.As(err, &condErr) {
		return false, "", fmt.Errorf("repository: ClaimCharge: %w", err)
	}

	prev, ok, err := c.Get(ctx, basketID)
	if err != nil {
		return false, "", fmt.Errorf("repository: ClaimCharge: %w", err)
	}
	if !ok {
		// Expired between the put and the read.
		return false, domain.CheckoutChargeConfirmed, nil
	}
	slog.Info("basket already claimed", "basketId", basketID, "state", prev.State, "orderId", prev.OrderID)
	return false, prev.State, nil
}

// MarkSubmitted moves a claimed basket to ORDER_SUBMITTED with the order id
// assigned by the order service.
func (c *Client) MarkSubmitted(ctx context.Context, basketID, orderID string, total float64) error {
	if strings.TrimSpace(basketID) == "" {
		return errors.New("repository: MarkSubmitted: basket id is required")
	}

	entry := c.newEntry(basketID, domain.CheckoutOrderSubmitted, orderID, total)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                entryItem(entry),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: MarkSubmitted: %w", err)
	}
	return nil
}

// Get returns the ledger entry for basketID, if any.
func (c *Client) Get(ctx context.Context, basketID string) (domain.LedgerEntry, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: basketPK(basketID)},
			"SK": &types.AttributeValueMemberS{Value: skCheckout},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.LedgerEntry{}, false, fmt.Errorf("repository: Get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.LedgerEntry{}, false, nil
	}
	entry, err := itemToEntry(out.Item)
	if err != nil {
		return domain.LedgerEntry{}, false, fmt.Errorf("repository: Get decode: %w", err)
	}
	return entry, true, nil
}

func (c *Client) newEntry(basketID string, state domain.CheckoutState, orderID string, total float64) domain.LedgerEntry {
	now := c.now().UTC()
	return domain.LedgerEntry{
		PK:        basketPK(basketID),
		SK:        skCheckout,
		BasketID:  basketID,
		State:     state,
		OrderID:   orderID,
		Total:     total,
		UpdatedAt: now.Format(time.RFC3339),
		TTL:       now.Add(ttlDuration).Unix(),
	}
}

func entryItem(e domain.LedgerEntry) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: e.PK},
		"SK":        &types.AttributeValueMemberS{Value: e.SK},
		"basketId":  &types.AttributeValueMemberS{Value: e.BasketID},
		"state":     &types.AttributeValueMemberS{Value: string(e.State)},
		"total":     &types.AttributeValueMemberN{Value: strconv.FormatFloat(e.Total, 'f', 2, 64)},
		"updatedAt": &types.AttributeValueMemberS{Value: e.UpdatedAt},
		"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", e.TTL)},
	}
	if e.OrderID != "" {
		item["orderId"] = &types.AttributeValueMemberS{Value: e.OrderID}
	}
	return item
}

// itemToEntry converts a DynamoDB attribute map to a LedgerEntry.
func itemToEntry(item map[string]types.AttributeValue) (domain.LedgerEntry, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	state, err := strAttr(item, "state")
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	basketID, _ := strAttr(item, "basketId")
	orderID, _ := strAttr(item, "orderId") // absent until submitted
	updatedAt, _ := strAttr(item, "updatedAt")
	total, err := floatAttr(item, "total")
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	return domain.LedgerEntry{
		PK:        pk,
		SK:        sk,
		BasketID:  basketID,
		State:     domain.CheckoutState(state),
		OrderID:   orderID,
		Total:     total,
		UpdatedAt: updatedAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func floatAttr(item map[string]types.AttributeValue, key string) (float64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
