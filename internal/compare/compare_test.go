package compare

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

func TestCompareBatches(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	prev := []models.Batch{
		{ID: 1, FileName: "a.xlsx", State: models.BatchProcessing},
		{ID: 2, FileName: "b.xml", State: models.BatchValidating},
		{ID: 3, FileName: "c.csv", State: models.BatchCompleted},
	}
	next := []models.Batch{
		{ID: 4, FileName: "d.txt", State: models.BatchProcessing},
		{ID: 1, FileName: "a.xlsx", State: models.BatchProcessing},
		{ID: 2, FileName: "b.xml", State: models.BatchCompletedWithWarns},
		{ID: 3, FileName: "c.csv", State: models.BatchValidating},
	}

	changes := CompareBatches(prev, next, logger)
	if len(changes) != 3 {
		t.Fatalf("changes = %d, want 3 (%+v)", len(changes), changes)
	}

	if !changes[0].NewBatch || changes[0].BatchID != 4 {
		t.Errorf("changes[0] = %+v, want new batch 4", changes[0])
	}
	if changes[1].BatchID != 2 || !changes[1].Legal || changes[1].OldState != models.BatchValidating {
		t.Errorf("changes[1] = %+v", changes[1])
	}
	if changes[2].BatchID != 3 || changes[2].Legal {
		t.Errorf("changes[2] = %+v, want illegal transition", changes[2])
	}

	if n := logs.FilterMessage("compare: unexpected batch transition").Len(); n != 1 {
		t.Errorf("warnings logged = %d, want 1", n)
	}
	if n := logs.FilterMessage("compare: batch state change detected").Len(); n != 1 {
		t.Errorf("state changes logged = %d, want 1", n)
	}
}

func TestCompareBatches_NilLogger(t *testing.T) {
	changes := CompareBatches(nil, []models.Batch{{ID: 1, State: models.BatchError}}, nil)
	if len(changes) != 1 || !changes[0].NewBatch {
		t.Fatalf("changes = %+v", changes)
	}
}
