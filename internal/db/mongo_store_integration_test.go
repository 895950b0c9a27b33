//go:build integration

package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Runs against a live MongoDB: QFORMS_TEST_MONGO_URI=mongodb://localhost:27017 go test -tags integration ./internal/db
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("QFORMS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("QFORMS_TEST_MONGO_URI not set")
	}
	prefix := fmt.Sprintf("test_%d_", time.Now().UnixNano())
	st, err := NewMongoStore(MongoConfig{URI: uri, DBNamePrefix: prefix, Timeout: 10, RunIndexCreation: true})
	if err != nil {
		t.Fatalf("NewMongoStore: %v", err)
	}
	defer func() {
		ctx, cancel := st.getContext(context.Background())
		defer cancel()
		if err := st.DBClient.Database(st.getDBName()).Drop(ctx); err != nil {
			t.Logf("drop test database: %v", err)
		}
		_ = st.Close()
	}()
	runStoreContract(t, st)

	t.Run("corrupt document is reported", func(t *testing.T) {
		ctx := context.Background()
		bad := bson.M{"_id": "q-corrupt", "ownerId": "owner-corrupt", "questions": "not a list", "version": 1, "createdAt": time.Now()}
		if _, err := st.collectionQuestionnaires().InsertOne(ctx, bad); err != nil {
			t.Fatalf("insert corrupt document: %v", err)
		}
		recs, err := st.ListQuestionnairesByOwner(ctx, "owner-corrupt")
		if err == nil {
			t.Fatalf("ListQuestionnairesByOwner = %v, want decode error", recs)
		}
	})
}
