package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/stocksync/internal/formatter"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

// RunLoader loads one stored run with its operations and unmatched rows.
//
// *repositories.SyncRunRepository implements it.
type RunLoader interface {
	GetContext(ctx context.Context, id string) (*models.SyncRun, error)
}

// BulkExportOpts contains configuration for exporting many runs at once.
type BulkExportOpts struct {
	Formats    []formatter.Format // Report formats (default: all)
	OutputDir  string             // Base output directory (default: sync_reports_{epoch})
	NumWorkers int                // Concurrent workers (default: 4, max 8)
}

// RunExportResult is the outcome of exporting one run.
type RunExportResult struct {
	RunID    string   `json:"run_id"`
	Sequence int      `json:"run"`
	Status   string   `json:"status,omitempty"`
	Files    []string `json:"files"`
	Error    error    `json:"-"`
	Message  string   `json:"error,omitempty"`
}

// BulkExportResult summarizes a [BulkExport] call.
type BulkExportResult struct {
	TotalRuns         int               `json:"total_runs"`
	SuccessfulExports int               `json:"successful_exports"`
	FailedExports     int               `json:"failed_exports"`
	OutputDirectory   string            `json:"output_directory"`
	ManifestPath      string            `json:"-"`
	Results           []RunExportResult `json:"results"`
}

// BulkExport writes report files for every run in ids using a pool of workers, then a
// manifest (export_manifest.json) listing what was written.
//
// A run that fails to load or render is recorded as failed; the other runs still export.
func BulkExport(ctx context.Context, prog chan<- ProgressUpdate, loader RunLoader, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if loader == nil {
		return nil, fmt.Errorf("%w: run loader", shared.ErrMissingArgument)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("sync_reports_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	opts.NumWorkers = min(opts.NumWorkers, 8)

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalRuns:       len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]RunExportResult, 0, len(ids)),
	}

	jobs := make(chan string, len(ids))
	results := make(chan RunExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go exportWorker(ctx, &wg, loader, jobs, results, opts)
	}

	for _, id := range ids {
		jobs <- id
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			res.Message = res.Error.Error()
			result.FailedExports++
		} else {
			result.SuccessfulExports++
		}
		result.Results = append(result.Results, res)
		sendProgress(prog, exportUpdate(completed, len(ids), res))
	}

	slices.SortFunc(result.Results, func(a, b RunExportResult) int { return b.Sequence - a.Sequence })

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export interrupted: %w", err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker exports runs from jobs until the channel is closed or ctx is done.
func exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	loader RunLoader,
	jobs <-chan string,
	results chan<- RunExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for id := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- exportRun(ctx, loader, id, opts)
	}
}

func exportRun(ctx context.Context, loader RunLoader, id string, opts BulkExportOpts) RunExportResult {
	res := RunExportResult{RunID: id, Files: []string{}}

	run, err := loader.GetContext(ctx, id)
	if err != nil {
		res.Error = fmt.Errorf("failed to load run: %w", err)
		return res
	}
	res.Sequence = run.Sequence()
	res.Status = run.Status()

	files, err := formatter.WriteReport(run, opts.OutputDir, opts.Formats...)
	if err != nil {
		res.Error = err
		return res
	}
	res.Files = files.Files
	return res
}

func writeManifest(result *BulkExportResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
