package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

func TestRunStore_Lifecycle(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.PipelineRun{
		RunID:     "run-1",
		StartedAt: time.Now(),
		Status:    domain.RunRunning,
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	finished := time.Now()
	run.Status = domain.RunPartial
	run.FinishedAt = &finished
	run.Counters.RawCollected = 10
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.RunPartial {
		t.Errorf("Status mismatch: got %s", got.Status)
	}
	if got.Counters.RawCollected != 10 {
		t.Errorf("Counters not persisted: %+v", got.Counters)
	}
	if got.FinishedAt == nil {
		t.Error("expected FinishedAt set")
	}
}

func TestRunStore_ListByStatus(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	runs := []*domain.PipelineRun{
		{RunID: "a", StartedAt: base, Status: domain.RunSuccess},
		{RunID: "b", StartedAt: base.Add(time.Hour), Status: domain.RunFailed},
		{RunID: "c", StartedAt: base.Add(2 * time.Hour), Status: domain.RunSuccess},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	success, err := store.List(ctx, domain.RunSuccess, 0, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(success) != 2 {
		t.Fatalf("expected 2 success runs, got %d", len(success))
	}
	if success[0].RunID != "c" {
		t.Errorf("expected newest first, got %s", success[0].RunID)
	}

	all, err := store.List(ctx, "", 2, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected limit respected, got %d", len(all))
	}
}

func TestRunStore_UpdateMissing(t *testing.T) {
	store := NewRunStore()
	err := store.Update(context.Background(), &domain.PipelineRun{RunID: "ghost"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeliveryStore_InsertUpdateList(t *testing.T) {
	store := NewDeliveryStore()
	ctx := context.Background()

	log := &domain.DeliveryLog{
		RunID:   "run-1",
		Channel: "markdown",
		Status:  domain.DeliveryPending,
	}
	if err := store.Insert(ctx, log); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if log.ID == 0 {
		t.Error("expected ID assigned")
	}

	log.Status = domain.DeliverySuccess
	log.ChannelRef = "/tmp/digest.md"
	if err := store.Update(ctx, log); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	logs, err := store.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListByRun failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].Status != domain.DeliverySuccess || logs[0].ChannelRef != "/tmp/digest.md" {
		t.Errorf("update not persisted: %+v", logs[0])
	}
}

func TestClusterStore_InsertBulkAndList(t *testing.T) {
	store := NewClusterStore()
	ctx := context.Background()

	score := 0.85
	clusters := []*domain.DedupCluster{
		{RunID: "run-1", RepresentativeURL: "https://a", MemberURLs: []string{"https://b"}, Method: domain.DedupURLExact},
		{RunID: "run-1", RepresentativeURL: "https://c", MemberURLs: []string{"https://d"}, Method: domain.DedupSimilarity, SimilarityScore: &score},
		{RunID: "run-2", RepresentativeURL: "https://e", Method: domain.DedupHashMatch},
	}
	if err := store.InsertBulk(ctx, clusters); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListByRun failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 clusters for run-1, got %d", len(got))
	}
}
