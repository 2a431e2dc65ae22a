package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"doc-chat/config"
)

func TestEnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates session and ai log indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		require.NoError(mt, ensureIndexes(context.Background(), mt.DB))

		first := mt.GetStartedEvent()
		require.NotNil(mt, first)
		assert.Equal(mt, "createIndexes", first.CommandName)
		assert.Equal(mt, "chat_sessions", first.Command.Lookup("createIndexes").StringValue())

		second := mt.GetStartedEvent()
		require.NotNil(mt, second)
		assert.Equal(mt, "ai_logs", second.Command.Lookup("createIndexes").StringValue())
	})

	mt.Run("propagates failure", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 0}, {Key: "errmsg", Value: "not authorized"}, {Key: "code", Value: 13}})

		assert.Error(mt, ensureIndexes(context.Background(), mt.DB))
	})
}

func TestDisconnectWithoutInit(t *testing.T) {
	assert.NoError(t, Disconnect(context.Background()))
}

func TestInitUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Init(ctx, config.ServerConfig{
		MongoURI:    "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200",
		MongoDBName: "docchat_test",
	})

	assert.Error(t, err)
	assert.Nil(t, Database())
	assert.NoError(t, Disconnect(context.Background()))
}
