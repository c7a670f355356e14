package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/stocksync/internal/formatter"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

type mockLoader struct {
	mu   sync.Mutex
	runs map[string]*models.SyncRun
	// block, when set, holds every load until closed.
	block chan struct{}
}

func (m *mockLoader) GetContext(ctx context.Context, id string) (*models.SyncRun, error) {
	m.mu.Lock()
	run, ok := m.runs[id]
	m.mu.Unlock()

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("sync run not found: %s", id)
	}
	return run, nil
}

func storedRuns(n int) (*mockLoader, []string) {
	loader := &mockLoader{runs: map[string]*models.SyncRun{}}
	var ids []string
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= n; i++ {
		run := models.NewSyncRun(i, "stock.csv", "demo.myshopify.com", models.TriggerSchedule)
		id := fmt.Sprintf("run-%d", i)
		run.SetID(id)
		end := start.Add(time.Second)
		run.Complete(&models.SyncResult{
			TotalPlanned: 1, TotalExecuted: 1, TotalSuccess: 1,
			StartTime: start, EndTime: &end, Duration: time.Second,
		})
		if i%2 == 0 {
			run.SetUnmatched([]models.UnmatchedRow{{RowNumber: 3, SKU: "ZZ", Reason: models.ReasonNoMatch}})
		}
		loader.runs[id] = run
		ids = append(ids, id)
	}
	return loader, ids
}

func TestBulkExport(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		runs        int
		extraIDs    []string
		formats     []formatter.Format
		workers     int
		wantSuccess int
		wantFailed  int
		wantFiles   []string
	}{
		{
			name:        "single run markdown",
			runs:        1,
			formats:     []formatter.Format{formatter.FormatMarkdown},
			wantSuccess: 1,
			wantFiles:   []string{"sync-run-1.md"},
		},
		{
			name:        "several runs csv",
			runs:        3,
			formats:     []formatter.Format{formatter.FormatCSV, formatter.FormatUnmatched},
			workers:     2,
			wantSuccess: 3,
			wantFiles:   []string{"sync-run-1-results.csv", "sync-run-2-results.csv", "sync-run-2-unmatched.csv", "sync-run-3-results.csv"},
		},
		{
			name:        "missing run fails alone",
			runs:        2,
			extraIDs:    []string{"gone"},
			formats:     []formatter.Format{formatter.FormatText},
			workers:     20,
			wantSuccess: 2,
			wantFailed:  1,
			wantFiles:   []string{"sync-run-1.txt", "sync-run-2.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, ids := storedRuns(tt.runs)
			ids = append(ids, tt.extraIDs...)
			dir := t.TempDir()

			progress := make(chan ProgressUpdate, 20)
			result, err := BulkExport(ctx, progress, loader, ids, BulkExportOpts{
				Formats:    tt.formats,
				OutputDir:  dir,
				NumWorkers: tt.workers,
			})
			close(progress)
			if err != nil {
				t.Fatalf("BulkExport failed: %v", err)
			}

			if result.TotalRuns != len(ids) || result.SuccessfulExports != tt.wantSuccess || result.FailedExports != tt.wantFailed {
				t.Errorf("unexpected counts: %+v", result)
			}
			for _, name := range tt.wantFiles {
				if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
					t.Errorf("expected %s: %v", name, err)
				}
			}

			updates := 0
			for u := range progress {
				if u.Phase != ExportReports {
					t.Errorf("unexpected phase %v", u.Phase)
				}
				updates++
			}
			if updates != len(ids) {
				t.Errorf("expected %d progress updates, got %d", len(ids), updates)
			}
		})
	}
}

func TestBulkExportManifest(t *testing.T) {
	loader, ids := storedRuns(2)
	ids = append(ids, "gone")
	dir := t.TempDir()

	result, err := BulkExport(context.Background(), nil, loader, ids, BulkExportOpts{
		Formats:   []formatter.Format{formatter.FormatJSON},
		OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("BulkExport failed: %v", err)
	}
	if result.ManifestPath != filepath.Join(dir, "export_manifest.json") {
		t.Errorf("unexpected manifest path %q", result.ManifestPath)
	}

	// newest first, failed loads (no sequence) last
	if result.Results[0].Sequence != 2 || result.Results[1].Sequence != 1 || result.Results[2].RunID != "gone" {
		t.Errorf("unexpected result order: %+v", result.Results)
	}

	data, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var manifest struct {
		TotalRuns int `json:"total_runs"`
		Results   []struct {
			Run   int      `json:"run"`
			Files []string `json:"files"`
			Error string   `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("invalid manifest: %v", err)
	}
	if manifest.TotalRuns != 3 || len(manifest.Results) != 3 {
		t.Fatalf("unexpected manifest: %s", data)
	}
	if len(manifest.Results[0].Files) != 1 || !strings.HasSuffix(manifest.Results[0].Files[0], "sync-run-2.json") {
		t.Errorf("unexpected files %v", manifest.Results[0].Files)
	}
	if !strings.Contains(manifest.Results[2].Error, "not found") {
		t.Errorf("expected load error in manifest, got %q", manifest.Results[2].Error)
	}
}

func TestBulkExportErrors(t *testing.T) {
	t.Run("nil loader", func(t *testing.T) {
		_, err := BulkExport(context.Background(), nil, nil, []string{"a"}, BulkExportOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("output directory cannot be created", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		loader, ids := storedRuns(1)

		_, err := BulkExport(context.Background(), nil, loader, ids, BulkExportOpts{OutputDir: filepath.Join(file, "sub")})
		if err == nil || !strings.Contains(err.Error(), "failed to create output directory") {
			t.Errorf("expected directory error, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		loader, ids := storedRuns(4)
		loader.block = make(chan struct{})
		dir := t.TempDir()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := BulkExport(ctx, nil, loader, ids, BulkExportOpts{OutputDir: dir, NumWorkers: 2})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if result == nil || result.SuccessfulExports != 0 {
			t.Errorf("expected no successful exports, got %+v", result)
		}
		if _, err := os.Stat(filepath.Join(dir, "export_manifest.json")); !os.IsNotExist(err) {
			t.Error("manifest should not be written for an interrupted export")
		}
	})
}
