package repository

import (
	"context"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoTicketRepository guarda las clases grupales. El cupo se controla en
// el mismo UpdateOne que acepta el pedido: el filtro compara
// enrolled + pending contra capacity con $expr, así dos pedidos
// simultáneos por el último asiento no pueden entrar los dos.
type MongoTicketRepository struct {
	col *mongo.Collection
}

func NewMongoTicketRepository(db *mongo.Database) *MongoTicketRepository {
	return &MongoTicketRepository{col: db.Collection("ticket_classes")}
}

func (m *MongoTicketRepository) FindByID(ctx context.Context, classID string) (*model.TicketClass, error) {
	var res model.TicketClass
	err := m.col.FindOne(ctx, bson.M{"_id": classID}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	return &res, err
}

// AddRequest ocupa un asiento provisional si queda cupo y el alumno no
// está ya anotado ni pendiente.
func (m *MongoTicketRepository) AddRequest(ctx context.Context, classID string, req model.SeatRequest) error {
	filter := bson.M{
		"_id":                 classID,
		"cancelled":           false,
		"pending.student_id":  bson.M{"$ne": req.StudentID},
		"enrolled.student_id": bson.M{"$ne": req.StudentID},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$add": bson.A{bson.M{"$size": "$pending"}, bson.M{"$size": "$enrolled"}}},
			"$capacity",
		}},
	}

	update := bson.M{
		"$push": bson.M{"pending": req},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := m.FindByID(ctx, classID); err != nil {
			return err
		}
		return ErrWrongState
	}
	return nil
}

// ConfirmRequest mueve un pedido provisional al roster. Devuelve false sin
// error si el pedido ya no está pendiente (confirmación repetida).
func (m *MongoTicketRepository) ConfirmRequest(ctx context.Context, classID, requestID string, entry model.RosterEntry) (bool, error) {
	filter := bson.M{
		"_id":                classID,
		"pending.request_id": requestID,
	}

	update := bson.M{
		"$pull": bson.M{"pending": bson.M{"request_id": requestID}},
		"$push": bson.M{"enrolled": entry},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	class, err := m.FindByID(ctx, classID)
	if err != nil {
		return false, err
	}
	for _, e := range class.Enrolled {
		if e.RequestID == requestID {
			// Ya confirmado antes: no-op.
			return false, nil
		}
	}
	return false, ErrWrongState
}

// ReleaseRequest libera un asiento provisional (solo el alumno dueño).
func (m *MongoTicketRepository) ReleaseRequest(ctx context.Context, classID, requestID, studentID string) error {
	filter := bson.M{
		"_id":     classID,
		"pending": bson.M{"$elemMatch": bson.M{"request_id": requestID, "student_id": studentID}},
	}

	update := bson.M{
		"$pull": bson.M{"pending": bson.M{"request_id": requestID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := m.FindByID(ctx, classID); err != nil {
			return err
		}
		return ErrWrongState
	}
	return nil
}
