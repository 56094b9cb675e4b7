package appointmentRepo

import (
	"context"
	"fmt"
	"time"

	"salona/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Supersede implements a reschedule as a single multi-document transaction:
// the original row flips to rescheduled (freeing its slot) and the
// replacement row is inserted against the partial unique index. If the
// replacement loses a slot race the whole transaction aborts and the
// original stays active.
func (r *MongoAppointmentRepo) Supersede(ctx context.Context, orig *models.Appointment, replacement *models.Appointment) error {
	client := r.coll.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	now := time.Now()
	replacement.CreatedAt = now
	replacement.UpdatedAt = now
	replacement.Active = replacement.Status.IsActive()
	replacement.RescheduledFrom = orig.ID

	txnFn := func(sc mongo.SessionContext) error {
		update := bson.M{"$set": bson.M{
			"status":         models.StatusRescheduled,
			"active":         false,
			"rescheduled_to": replacement.ID,
			"updated_at":     now,
		}}
		res, err := r.coll.UpdateOne(sc, bson.M{"id": orig.ID, "active": true}, update)
		if err != nil {
			return fmt.Errorf("failed to mark appointment %s rescheduled: %w", orig.ID, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("appointment %s is no longer active", orig.ID)
		}

		if _, err := r.coll.InsertOne(sc, replacement); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicateSlot
			}
			return fmt.Errorf("failed to insert replacement appointment: %w", err)
		}
		return nil
	}

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		if err == ErrDuplicateSlot {
			return err
		}
		return fmt.Errorf("reschedule transaction failed: %w", err)
	}
	return nil
}
