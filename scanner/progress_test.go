package scanner

import (
	"fmt"
	"testing"
)

func TestProgressTracker_StopWaitsForAllResults(t *testing.T) {
	resultsChan := make(chan ProcessImageResult, 100)
	tracker := NewProgressTracker(FileStats{totalFiles: 100}, resultsChan)

	for i := 0; i < 80; i++ {
		resultsChan <- ProcessImageResult{Path: "ok.png", Success: true}
	}
	for i := 0; i < 15; i++ {
		resultsChan <- ProcessImageResult{Path: "unchanged.png", Success: true, Skipped: true}
	}
	for i := 0; i < 5; i++ {
		resultsChan <- ProcessImageResult{Path: "broken.png", Error: fmt.Errorf("decode failed")}
	}
	close(resultsChan)

	// Stop must not return until the buffered results are all counted
	tracker.Stop()

	if tracker.processed != 100 {
		t.Errorf("expected 100 processed, got %d", tracker.processed)
	}
	if tracker.skipped != 15 {
		t.Errorf("expected 15 skipped, got %d", tracker.skipped)
	}
	if tracker.errors != 5 {
		t.Errorf("expected 5 errors, got %d", tracker.errors)
	}
}
