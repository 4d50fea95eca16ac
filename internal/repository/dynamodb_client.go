package repository

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

	"kendra-chatbot/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	// fixed width so sort keys order chronologically
	skTimeLayout = "2006-01-02T15:04:05.000000000Z"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client stores session history in a DynamoDB table keyed by
// PK=SESSION#<id>, SK=TURN#<created-at>.
type Client struct {
	api       dynamodbAPI
	tableName string
	maxTurns  int
	now       func() time.Time
}

// turnItem is the persisted shape of a conversation turn.
type turnItem struct {
	PK                 string       `dynamodbav:"PK"`
	SK                 string       `dynamodbav:"SK"`
	SessionID          string       `dynamodbav:"sessionId"`
	UserInput          string       `dynamodbav:"userInput"`
	StandaloneQuestion string       `dynamodbav:"standaloneQuestion"`
	Answer             string       `dynamodbav:"answer"`
	Sources            []sourceItem `dynamodbav:"sourceDocuments"`
	CreatedAt          string       `dynamodbav:"createdAt"`
	TTL                int64        `dynamodbav:"ttl"`
}

type sourceItem struct {
	Title  string `dynamodbav:"title"`
	Source string `dynamodbav:"source"`
}

// MaxHistoryTurns caps the history window so it always fits a Query Limit.
const MaxHistoryTurns = 1000

// New creates a new repository Client. maxTurns limits Load to the most
// recent turns; zero or less loads the whole session, and values above
// MaxHistoryTurns are clamped to it.
func New(api dynamodbAPI, tableName string, maxTurns int) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if maxTurns < 0 {
		maxTurns = 0
	}
	if maxTurns > MaxHistoryTurns {
		maxTurns = MaxHistoryTurns
	}
	return &Client{api: api, tableName: tableName, maxTurns: maxTurns, now: time.Now}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// turnSK returns the sort key for a turn created at ts.
func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(skTimeLayout)
}

// Load returns the session history in chronological order.
func (c *Client) Load(ctx context.Context, sessionID string) (domain.ConversationHistory, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ConsistentRead: aws.Bool(true),
	}

	var items []map[string]types.AttributeValue
	if c.maxTurns > 0 {
		// Read newest first so LIMIT favors the most recent context.
		in.ScanIndexForward = aws.Bool(false)
		in.Limit = aws.Int32(int32(c.maxTurns))
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: Load query: %w", err)
		}
		items = out.Items
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	} else {
		p := dynamodb.NewQueryPaginator(c.api, in)
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("repository: Load query: %w", err)
			}
			items = append(items, page.Items...)
		}
	}

	var records []turnItem
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("repository: Load unmarshal: %w", err)
	}
	history := make(domain.ConversationHistory, 0, len(records))
	for _, r := range records {
		turn, err := r.toTurn()
		if err != nil {
			return nil, fmt.Errorf("repository: Load decode %s: %w", r.SK, err)
		}
		history = append(history, turn)
	}
	return history, nil
}

// Append writes a new turn. Existing turns are never overwritten.
func (c *Client) Append(ctx context.Context, sessionID string, turn domain.ConversationTurn) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: Append: session id is required")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = c.now().UTC()
	}
	turn.SessionID = sessionID

	item, err := attributevalue.MarshalMap(newTurnItem(turn, c.now()))
	if err != nil {
		return fmt.Errorf("repository: Append marshal: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

func newTurnItem(turn domain.ConversationTurn, now time.Time) turnItem {
	sources := make([]sourceItem, 0, len(turn.SourceDocuments))
	for _, s := range turn.SourceDocuments {
		sources = append(sources, sourceItem(s))
	}
	return turnItem{
		PK:                 sessionPK(turn.SessionID),
		SK:                 turnSK(turn.CreatedAt),
		SessionID:          turn.SessionID,
		UserInput:          turn.UserInput,
		StandaloneQuestion: turn.StandaloneQuestion,
		Answer:             turn.Answer,
		Sources:            sources,
		CreatedAt:          turn.CreatedAt.UTC().Format(time.RFC3339Nano),
		TTL:                now.Add(ttlDuration).Unix(),
	}
}

func (r turnItem) toTurn() (domain.ConversationTurn, error) {
	if r.UserInput == "" {
		return domain.ConversationTurn{}, errors.New("missing attribute \"userInput\"")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return domain.ConversationTurn{}, fmt.Errorf("parse createdAt: %w", err)
	}
	sources := make([]domain.SourceAttribution, 0, len(r.Sources))
	for _, s := range r.Sources {
		sources = append(sources, domain.SourceAttribution(s))
	}
	return domain.ConversationTurn{
		SessionID:          r.SessionID,
		UserInput:          r.UserInput,
		StandaloneQuestion: r.StandaloneQuestion,
		Answer:             r.Answer,
		SourceDocuments:    sources,
		CreatedAt:          createdAt,
	}, nil
}
