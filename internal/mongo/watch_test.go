package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"finze/internal/core"
	"finze/internal/live"
)

func TestWatchPipeline_MatchesUserWritesAndDeletes(t *testing.T) {
	p := watchPipeline("u1")
	if len(p) != 1 {
		t.Fatalf("expected a single $match stage, got %d", len(p))
	}
	raw, err := bson.Marshal(p[0])
	if err != nil {
		t.Fatalf("marshal stage: %v", err)
	}
	var stage struct {
		Match struct {
			Or []bson.M `bson:"$or"`
		} `bson:"$match"`
	}
	if err := bson.Unmarshal(raw, &stage); err != nil {
		t.Fatalf("unmarshal stage: %v", err)
	}
	if len(stage.Match.Or) != 2 {
		t.Fatalf("unexpected $or %+v", stage.Match.Or)
	}
	if stage.Match.Or[0]["fullDocument.user_id"] != "u1" {
		t.Errorf("first clause = %+v", stage.Match.Or[0])
	}
	if stage.Match.Or[1]["operationType"] != "delete" {
		t.Errorf("second clause = %+v", stage.Match.Or[1])
	}
}

func TestChangeFromEvent(t *testing.T) {
	var ev changeEvent
	ev.OperationType = "replace"
	ev.FullDocument.ID = "b1"
	ev.FullDocument.UserID = "u1"

	c := changeFromEvent(ev, "u1", core.CollectionBudgets)
	if c.Op != live.OpPut || c.ID != "b1" || c.Collection != core.CollectionBudgets || c.UserID != "u1" {
		t.Fatalf("unexpected change %+v", c)
	}

	c = changeFromEvent(changeEvent{OperationType: "delete"}, "u1", core.CollectionBudgets)
	if c.Op != live.OpDelete || c.ID != "" {
		t.Fatalf("unexpected delete change %+v", c)
	}
}

func TestDocumentsRoundTripThroughBSON(t *testing.T) {
	in := core.Budget{ID: "b1", UserID: "u1", Category: "Food", Amount: core.Money{Cents: 200000}, Period: core.Monthly, AlertThreshold: 80}
	raw, err := bson.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc bson.M
	_ = bson.Unmarshal(raw, &doc)
	if doc["user_id"] != "u1" || doc["id"] != "b1" {
		t.Fatalf("filter fields missing from document %+v", doc)
	}
	var out core.Budget
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}
