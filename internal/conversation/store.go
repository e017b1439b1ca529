package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/villagestay/whatsapp-bot/pkg/logging"
)

// ErrStaleConversation indicates a commit lost a race with another message
// from the same identity; the caller's view of the conversation is outdated.
var ErrStaleConversation = errors.New("conversation: conversation modified concurrently")

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store persists conversations to DynamoDB, one item per identity. The item
// always holds the identity's latest conversation; a completed item is
// replaced wholesale the next time that guest messages.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

// LoadOrCreate returns the active conversation for the identity, creating a
// fresh one in the greeting state when none exists. Creation is conditional
// so two racing first messages cannot both insert.
func (s *Store) LoadOrCreate(ctx context.Context, identity string) (*Conversation, error) {
	existing, err := s.getActive(ctx, identity)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	fresh := &Conversation{
		Identity:     identity,
		State:        StateGreeting,
		Status:       StatusActive,
		CreatedAt:    now,
		LastActivity: now,
		Revision:     1,
	}
	item, err := attributevalue.MarshalMap(fresh)
	if err != nil {
		return nil, fmt.Errorf("conversation: marshal conversation: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#identity) OR #status = :completed"),
		ExpressionAttributeNames: map[string]string{
			"#identity": "identity",
			"#status":   "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: string(StatusCompleted)},
		},
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			// Lost the create race; the winner's conversation is the one.
			winner, getErr := s.getActive(ctx, identity)
			if getErr != nil {
				return nil, getErr
			}
			if winner != nil {
				return winner, nil
			}
			return nil, fmt.Errorf("conversation: create race unresolved for %s", identity)
		}
		return nil, fmt.Errorf("conversation: create conversation: %w", err)
	}

	s.logger.Info("conversation created", "identity", identity)
	return fresh, nil
}

// Commit records a state transition. A nil data leaves the stored session
// data untouched; lastActivity is refreshed either way. The write is
// conditional on the revision the caller loaded, so a concurrent commit from
// another message surfaces as ErrStaleConversation instead of a lost update.
func (s *Store) Commit(ctx context.Context, conv *Conversation, next State, data *Data) error {
	if conv == nil {
		return errors.New("conversation: conversation cannot be nil")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	names := map[string]string{
		"#state": "state",
		"#last":  "lastActivity",
		"#rev":   "revision",
	}
	values := map[string]types.AttributeValue{
		":state":   &types.AttributeValueMemberS{Value: string(next)},
		":last":    &types.AttributeValueMemberS{Value: now},
		":rev":     &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.Revision, 10)},
		":nextRev": &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.Revision+1, 10)},
	}
	expression := "SET #state = :state, #last = :last, #rev = :nextRev"

	if data != nil {
		attr, err := attributevalue.Marshal(data)
		if err != nil {
			return fmt.Errorf("conversation: marshal session data: %w", err)
		}
		names["#data"] = "data"
		values[":data"] = attr
		expression += ", #data = :data"
	}

	if err := s.update(ctx, conv.Identity, expression, names, values); err != nil {
		return err
	}

	conv.State = next
	conv.LastActivity = now
	conv.Revision++
	if data != nil {
		conv.Data = *data
	}
	return nil
}

// Complete soft-closes a conversation at the end of a successful booking:
// state and status both become completed and the session data is cleared.
func (s *Store) Complete(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return errors.New("conversation: conversation cannot be nil")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	emptyData, err := attributevalue.Marshal(&Data{})
	if err != nil {
		return fmt.Errorf("conversation: marshal session data: %w", err)
	}

	names := map[string]string{
		"#state":  "state",
		"#status": "status",
		"#data":   "data",
		"#last":   "lastActivity",
		"#rev":    "revision",
	}
	values := map[string]types.AttributeValue{
		":state":   &types.AttributeValueMemberS{Value: string(StateCompleted)},
		":status":  &types.AttributeValueMemberS{Value: string(StatusCompleted)},
		":data":    emptyData,
		":last":    &types.AttributeValueMemberS{Value: now},
		":rev":     &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.Revision, 10)},
		":nextRev": &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.Revision+1, 10)},
	}
	expression := "SET #state = :state, #status = :status, #data = :data, #last = :last, #rev = :nextRev"

	if err := s.update(ctx, conv.Identity, expression, names, values); err != nil {
		return err
	}

	conv.State = StateCompleted
	conv.Status = StatusCompleted
	conv.Data = Data{}
	conv.LastActivity = now
	conv.Revision++
	s.logger.Info("conversation completed", "identity", conv.Identity)
	return nil
}

func (s *Store) getActive(ctx context.Context, identity string) (*Conversation, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"identity": &types.AttributeValueMemberS{Value: identity},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: fetch conversation: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var conv Conversation
	if err := attributevalue.UnmarshalMap(out.Item, &conv); err != nil {
		return nil, fmt.Errorf("conversation: decode conversation: %w", err)
	}
	if conv.Status != StatusActive {
		return nil, nil
	}
	return &conv, nil
}

func (s *Store) update(ctx context.Context, identity, expression string, names map[string]string, values map[string]types.AttributeValue) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"identity": &types.AttributeValueMemberS{Value: identity},
		},
		UpdateExpression:          aws.String(expression),
		ConditionExpression:       aws.String("#rev = :rev"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return ErrStaleConversation
		}
		return fmt.Errorf("conversation: commit transition for %s: %w", identity, err)
	}
	return nil
}
