package repository

import (
	"context"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCartRepository: un documento de carrito por usuario.
type MongoCartRepository struct {
	col *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{col: db.Collection("carts")}
}

func (m *MongoCartRepository) FindByUser(ctx context.Context, userID string) (*model.Cart, error) {
	var res model.Cart
	err := m.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		// Carrito vacío, todavía sin documento.
		return &model.Cart{UserID: userID}, nil
	}
	return &res, err
}

func (m *MongoCartRepository) AppendEntry(ctx context.Context, userID string, entry model.CartEntry) error {
	filter := bson.M{"_id": userID}
	update := bson.M{
		"$push": bson.M{"entries": entry},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.Update().SetUpsert(true)
	_, err := m.col.UpdateOne(ctx, filter, update, opts)
	return err
}

func (m *MongoCartRepository) RemoveEntry(ctx context.Context, userID, entryID string) error {
	filter := bson.M{"_id": userID, "entries.entry_id": entryID}
	update := bson.M{
		"$pull": bson.M{"entries": bson.M{"entry_id": entryID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
