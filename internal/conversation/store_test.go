package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/villagestay/whatsapp-bot/pkg/logging"
)

type fakeDynamo struct {
	getOutputs []*dynamodb.GetItemOutput
	getErr     error
	getCalls   int

	putInput *dynamodb.PutItemInput
	putErr   error

	updateInput *dynamodb.UpdateItemInput
	updateErr   error
}

func (f *fakeDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := &dynamodb.GetItemOutput{}
	if f.getCalls < len(f.getOutputs) {
		out = f.getOutputs[f.getCalls]
	}
	f.getCalls++
	return out, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInput = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateInput = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func itemFor(t *testing.T, conv Conversation) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(conv)
	require.NoError(t, err)
	return item
}

func newTestStore(client dynamoAPI) *Store {
	return NewStore(client, "whatsapp_conversations", logging.New("error"))
}

func TestLoadOrCreate_CreatesFreshConversation(t *testing.T) {
	client := &fakeDynamo{}
	store := newTestStore(client)

	conv, err := store.LoadOrCreate(context.Background(), "+919876543210")
	require.NoError(t, err)

	assert.Equal(t, "+919876543210", conv.Identity)
	assert.Equal(t, StateGreeting, conv.State)
	assert.Equal(t, StatusActive, conv.Status)
	assert.Equal(t, int64(1), conv.Revision)
	assert.NotEmpty(t, conv.CreatedAt)

	require.NotNil(t, client.putInput)
	assert.Equal(t, "whatsapp_conversations", *client.putInput.TableName)
	require.NotNil(t, client.putInput.ConditionExpression)
	assert.Contains(t, *client.putInput.ConditionExpression, "attribute_not_exists(#identity)")
}

func TestLoadOrCreate_ReturnsActiveConversation(t *testing.T) {
	existing := Conversation{
		Identity: "+919876543210",
		State:    StateBooking,
		Status:   StatusActive,
		Revision: 5,
	}
	client := &fakeDynamo{getOutputs: []*dynamodb.GetItemOutput{{Item: itemFor(t, existing)}}}
	store := newTestStore(client)

	conv, err := store.LoadOrCreate(context.Background(), "+919876543210")
	require.NoError(t, err)

	assert.Equal(t, StateBooking, conv.State)
	assert.Equal(t, int64(5), conv.Revision)
	assert.Nil(t, client.putInput, "no create when an active conversation exists")
}

func TestLoadOrCreate_ReplacesCompletedConversation(t *testing.T) {
	completed := Conversation{
		Identity: "+919876543210",
		State:    StateCompleted,
		Status:   StatusCompleted,
		Revision: 9,
	}
	client := &fakeDynamo{getOutputs: []*dynamodb.GetItemOutput{{Item: itemFor(t, completed)}}}
	store := newTestStore(client)

	conv, err := store.LoadOrCreate(context.Background(), "+919876543210")
	require.NoError(t, err)

	assert.Equal(t, StateGreeting, conv.State)
	assert.Equal(t, StatusActive, conv.Status)
	assert.Equal(t, int64(1), conv.Revision)
	assert.NotNil(t, client.putInput, "completed conversation is replaced")
}

func TestLoadOrCreate_LostCreateRaceReturnsWinner(t *testing.T) {
	winner := Conversation{
		Identity: "+919876543210",
		State:    StateSearching,
		Status:   StatusActive,
		Revision: 2,
	}
	client := &fakeDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{}, // first look: nothing there yet
			{Item: itemFor(t, winner)},
		},
		putErr: &types.ConditionalCheckFailedException{},
	}
	store := newTestStore(client)

	conv, err := store.LoadOrCreate(context.Background(), "+919876543210")
	require.NoError(t, err)

	assert.Equal(t, StateSearching, conv.State)
	assert.Equal(t, int64(2), conv.Revision)
	assert.Equal(t, 2, client.getCalls)
}

func TestCommit_UpdatesStateAndRevision(t *testing.T) {
	client := &fakeDynamo{}
	store := newTestStore(client)
	conv := &Conversation{Identity: "+919876543210", State: StateGreeting, Status: StatusActive, Revision: 1}

	err := store.Commit(context.Background(), conv, StateSearching, nil)
	require.NoError(t, err)

	assert.Equal(t, StateSearching, conv.State)
	assert.Equal(t, int64(2), conv.Revision)
	assert.NotEmpty(t, conv.LastActivity)

	require.NotNil(t, client.updateInput)
	expr := *client.updateInput.UpdateExpression
	assert.Contains(t, expr, "#state = :state")
	assert.Contains(t, expr, "#rev = :nextRev")
	assert.NotContains(t, expr, "#data", "nil data leaves stored session data untouched")
	assert.Equal(t, "#rev = :rev", *client.updateInput.ConditionExpression)
	rev, ok := client.updateInput.ExpressionAttributeValues[":rev"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "1", rev.Value)
}

func TestCommit_WritesSessionData(t *testing.T) {
	client := &fakeDynamo{}
	store := newTestStore(client)
	conv := &Conversation{Identity: "+919876543210", State: StateSearching, Status: StatusActive, Revision: 2}
	data := &Data{SearchResults: nil}

	err := store.Commit(context.Background(), conv, StateBooking, data)
	require.NoError(t, err)

	assert.Contains(t, *client.updateInput.UpdateExpression, "#data = :data")
	assert.Equal(t, "data", client.updateInput.ExpressionAttributeNames["#data"])
}

func TestCommit_ConcurrentModificationIsStale(t *testing.T) {
	client := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	store := newTestStore(client)
	conv := &Conversation{Identity: "+919876543210", State: StateGreeting, Status: StatusActive, Revision: 1}

	err := store.Commit(context.Background(), conv, StateSearching, nil)

	assert.ErrorIs(t, err, ErrStaleConversation)
	assert.Equal(t, StateGreeting, conv.State, "in-memory view untouched on failure")
	assert.Equal(t, int64(1), conv.Revision)
}

func TestCommit_OtherErrorsAreWrapped(t *testing.T) {
	client := &fakeDynamo{updateErr: errors.New("throttled")}
	store := newTestStore(client)
	conv := &Conversation{Identity: "+919876543210", Revision: 1}

	err := store.Commit(context.Background(), conv, StateSearching, nil)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStaleConversation)
}

func TestComplete_ClosesAndClearsData(t *testing.T) {
	client := &fakeDynamo{}
	store := newTestStore(client)
	conv := &Conversation{
		Identity: "+919876543210",
		State:    StateDetails,
		Status:   StatusActive,
		Data:     Data{SearchResults: nil},
		Revision: 4,
	}

	err := store.Complete(context.Background(), conv)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, conv.State)
	assert.Equal(t, StatusCompleted, conv.Status)
	assert.Equal(t, Data{}, conv.Data)
	assert.Equal(t, int64(5), conv.Revision)

	expr := *client.updateInput.UpdateExpression
	assert.Contains(t, expr, "#status = :status")
	assert.Contains(t, expr, "#data = :data")
	assert.Equal(t, "#rev = :rev", *client.updateInput.ConditionExpression)
}
