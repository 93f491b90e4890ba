package resizer

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestRun_DownsizesLargeImages(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	writeTestImage(t, filepath.Join(in, "large.png"), 800, 600)

	result, err := Run(Options{InputDir: in, OutputDir: out, MaxDim: 300})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Resized != 1 {
		t.Errorf("expected 1 resized, got %+v", result)
	}

	resized, err := imaging.Open(filepath.Join(out, "large.png"))
	if err != nil {
		t.Fatalf("cannot open output: %v", err)
	}
	b := resized.Bounds()
	if b.Dx() != 300 || b.Dy() != 225 {
		t.Errorf("expected 300x225 output, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRun_SmallImagesCopiedVerbatim(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	src := filepath.Join(in, "small.png")
	writeTestImage(t, src, 100, 80)

	result, err := Run(Options{InputDir: in, OutputDir: out, MaxDim: 300})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Copied != 1 {
		t.Errorf("expected 1 copied, got %+v", result)
	}

	srcBytes, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	outBytes, err := os.ReadFile(filepath.Join(out, "small.png"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(srcBytes, outBytes) {
		t.Error("small images should be byte-copied, not re-encoded")
	}
}

func TestRun_SkipsUpToDateOutputs(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	writeTestImage(t, filepath.Join(in, "a.png"), 600, 600)

	if _, err := Run(Options{InputDir: in, OutputDir: out, MaxDim: 300}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	result, err := Run(Options{InputDir: in, OutputDir: out, MaxDim: 300})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if result.Skipped != 1 || result.Resized != 0 {
		t.Errorf("second run should skip the up-to-date output, got %+v", result)
	}

	// Force reprocesses regardless
	forced, err := Run(Options{InputDir: in, OutputDir: out, MaxDim: 300, Force: true})
	if err != nil {
		t.Fatalf("forced run failed: %v", err)
	}
	if forced.Resized != 1 {
		t.Errorf("forced run should reprocess, got %+v", forced)
	}
}

func TestRun_MirrorsDirectoryLayout(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	sub := filepath.Join(in, "drawings", "2024")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeTestImage(t, filepath.Join(sub, "sketch.png"), 500, 400)

	if _, err := Run(Options{InputDir: in, OutputDir: out, MaxDim: 200}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(out, "drawings", "2024", "sketch.png")); err != nil {
		t.Errorf("output should mirror the input layout: %v", err)
	}
}

func TestRun_ContinuesAfterBrokenFile(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	if err := os.WriteFile(filepath.Join(in, "broken.jpg"), []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}
	writeTestImage(t, filepath.Join(in, "ok.png"), 500, 500)

	result, err := Run(Options{InputDir: in, OutputDir: out, MaxDim: 200})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Errors != 1 || result.Resized != 1 {
		t.Errorf("expected 1 error and 1 resized, got %+v", result)
	}
}

func TestRun_MissingInputDir(t *testing.T) {
	if _, err := Run(Options{
		InputDir:  filepath.Join(t.TempDir(), "nope"),
		OutputDir: t.TempDir(),
		MaxDim:    300,
	}); err == nil {
		t.Error("expected error for missing input directory")
	}
}

func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{90, 120, 150, 255})
	// A non-uniform corner so encoders have something to do
	for y := 0; y < h/4; y++ {
		for x := 0; x < w/4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), 0, 255})
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}
