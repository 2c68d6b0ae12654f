package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"finze/internal/core"
	"finze/internal/live"
)

// changeEvent is the subset of a change stream event we read. Deletes carry
// no fullDocument, so they cannot be attributed to a user.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  struct {
		ID     string `bson:"id"`
		UserID string `bson:"user_id"`
	} `bson:"fullDocument"`
}

// watchPipeline keeps the user's writes plus every delete. A delete of
// another user's document costs the subscriber one extra re-read.
func watchPipeline(userID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "fullDocument.user_id", Value: userID}},
			bson.D{{Key: "operationType", Value: "delete"}},
		}}}}},
	}
}

func changeFromEvent(ev changeEvent, userID string, collection core.Collection) live.Change {
	op := live.OpPut
	if ev.OperationType == "delete" {
		op = live.OpDelete
	}
	return live.NewChange(userID, collection, ev.FullDocument.ID, op)
}

// Watch implements live.Source with a change stream on the collection.
func (s *Store) Watch(ctx context.Context, userID string, collection core.Collection) (<-chan live.Change, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := s.db.Collection(string(collection)).Watch(ctx, watchPipeline(userID), opts)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", collection, err)
	}

	out := make(chan live.Change, 1)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				slog.ErrorContext(ctx, "Failed to decode change event", "collection", collection, "error", err)
				continue
			}
			select {
			case out <- changeFromEvent(ev, userID, collection):
			default:
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Change stream stopped", "collection", collection, "error", err)
		}
	}()

	return out, nil
}
