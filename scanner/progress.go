package scanner

import (
	"fmt"
	"sync"
	"time"

	"imagetidy/logging"
)

// ProgressTracker tracks progress of the indexing operation
type ProgressTracker struct {
	processed  int
	skipped    int
	errors     int
	ticker     *time.Ticker
	done       chan bool
	drained    chan struct{}
	mu         sync.Mutex
	totalFiles int
}

// NewProgressTracker initializes the progress tracker
func NewProgressTracker(stats FileStats, resultsChan chan ProcessImageResult) *ProgressTracker {
	tracker := &ProgressTracker{
		ticker:     time.NewTicker(500 * time.Millisecond),
		done:       make(chan bool),
		drained:    make(chan struct{}),
		totalFiles: stats.totalFiles,
	}

	// Start progress display goroutine
	go tracker.displayProgress()

	// Start result processor goroutine
	go tracker.processResults(resultsChan)

	return tracker
}

// displayProgress shows the progress periodically
func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Printf("\rProgress: %d/%d (Skipped: %d, Errors: %d)",
					p.processed, p.totalFiles, p.skipped, p.errors)
			} else {
				fmt.Printf("\rProgress: %d/%d (Skipped: %d)",
					p.processed, p.totalFiles, p.skipped)
			}
			p.mu.Unlock()
		}
	}
}

// processResults updates the tracker state based on processing results.
// Closing drained signals that every buffered result has been counted.
func (p *ProgressTracker) processResults(resultsChan chan ProcessImageResult) {
	defer close(p.drained)

	for result := range resultsChan {
		p.mu.Lock()
		p.processed++

		if result.Skipped {
			p.skipped++
		}

		if !result.Success {
			p.errors++
			if result.Error != nil {
				logging.LogImageProcessed(result.Path, false, result.Error.Error())
			}
		} else {
			logging.LogImageProcessed(result.Path, true, "")
		}

		p.mu.Unlock()
	}
}

// Stop ends the progress display and waits until every result still buffered
// in the channel has been counted, so completion stats read the final numbers.
// The results channel must be closed before calling Stop.
func (p *ProgressTracker) Stop() {
	p.ticker.Stop()
	p.done <- true
	<-p.drained
}

// PrintStartupInfo displays information about the scan before starting
func PrintStartupInfo(stats FileStats, options ScanOptions) {
	fmt.Printf("Starting catalogue indexing...\nTotal image files to process: %d\n", stats.totalFiles)
	fmt.Printf("Force rewrite mode: %v\n", options.ForceRewrite)

	if options.SourcePrefix != "" {
		fmt.Printf("Source prefix: %s\n", options.SourcePrefix)
	}

	if options.DebugMode {
		fmt.Printf("Debug mode: enabled\n")
		logging.DebugLog("Found %d image files to process", stats.totalFiles)
	}
}

// PrintCompletionStats displays statistics after scan completion
func PrintCompletionStats(tracker *ProgressTracker, startTime time.Time, options ScanOptions) {
	elapsed := time.Since(startTime)

	tracker.mu.Lock()
	processed, skipped, errors := tracker.processed, tracker.skipped, tracker.errors
	tracker.mu.Unlock()

	if options.DebugMode {
		logging.DebugLog("Index completed in %v. Processed: %d, Skipped: %d, Errors: %d",
			elapsed, processed, skipped, errors)
	}

	fmt.Println("\nIndexing complete.")
	fmt.Printf("Processed %d images in %v.\n", processed, elapsed.Round(time.Second))

	if skipped > 0 {
		fmt.Printf("Skipped %d unchanged images.\n", skipped)
	}

	if errors > 0 {
		fmt.Printf("Encountered %d errors during indexing.\n", errors)
		fmt.Println("Check the log file for details.")
	}
}
