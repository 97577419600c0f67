package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilterBuilderChaining(t *testing.T) {
	t.Parallel()

	filter := NewFilter().
		Eq("chat_id", "global").
		Ne("sender_id", "alice").
		Exists("deleted_at", false).
		Build()

	require.Equal(t, bson.M{
		"chat_id":    "global",
		"sender_id":  bson.M{"$ne": "alice"},
		"deleted_at": bson.M{"$exists": false},
	}, filter)
}

func TestFilterBuilderObjectID(t *testing.T) {
	t.Parallel()

	oid := primitive.NewObjectID()
	filter := NewFilter().ObjectID("_id", oid.Hex()).Build()
	require.Equal(t, bson.M{"_id": oid}, filter)

	// malformed hex leaves the filter untouched instead of matching nothing
	filter = NewFilter().ObjectID("_id", "zzz").Build()
	require.Equal(t, bson.M{}, filter)
}

func TestFilterBuilderObjectIDsSkipsMalformed(t *testing.T) {
	t.Parallel()

	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	filter := NewFilter().ObjectIDs("_id", []string{a.Hex(), "not-hex", b.Hex()}).Build()
	require.Equal(t, bson.M{"_id": bson.M{"$in": []primitive.ObjectID{a, b}}}, filter)
}

func TestFilterBuilderOr(t *testing.T) {
	t.Parallel()

	filter := NewFilter().Or(
		bson.M{"sender_id": "alice"},
		bson.M{"sender_id": "bob"},
	).Build()

	require.Equal(t, bson.M{"$or": []bson.M{
		{"sender_id": "alice"},
		{"sender_id": "bob"},
	}}, filter)

	require.Equal(t, bson.M{}, NewFilter().Or().Build())
	require.Equal(t, bson.M{}, Empty())
}
