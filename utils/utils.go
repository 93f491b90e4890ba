package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"imagetidy/imageprocessor"
)

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "dedupe", "crop", "resize", "index":
			command = os.Args[i]
			commandIndex = i
		}
		if command != "" {
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				// The next argument is the value
				args[flagName] = os.Args[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// GetDefaultDatabasePath returns the default path for the catalogue database file
func GetDefaultDatabasePath() string {
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return "catalogue.db"
	}

	exeDir := filepath.Dir(exePath)
	return filepath.Join(exeDir, "catalogue.db")
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s dedupe --folder=PATH [--dry-run] [--keep-newest] [--exact] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s crop --image=PATH [--margin=FRACTION]\n", os.Args[0])
	fmt.Printf("  %s resize --input=PATH --output=PATH [--max-dim=N] [--force]\n", os.Args[0])
	fmt.Printf("  %s index --folder=PATH [--database=PATH] [--prefix=NAME] [--force] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --folder      : Path to folder containing images\n")
	fmt.Printf("  --image       : Path to image to crop in place\n")
	fmt.Printf("  --margin      : Margin fraction around cropped content (0.0-1.0, default: 0.1)\n")
	fmt.Printf("  --input       : Input directory of original images\n")
	fmt.Printf("  --output      : Output directory for downsized images\n")
	fmt.Printf("  --max-dim     : Maximum width or height of downsized images (default: 300)\n")
	fmt.Printf("  --dry-run     : Report duplicates without deleting anything\n")
	fmt.Printf("  --keep-newest : Keep the newest file of each duplicate group instead of the oldest\n")
	fmt.Printf("  --exact       : Group by exact file content instead of perceptual fingerprint\n")
	fmt.Printf("  --database    : Path to catalogue database file (default: %s)\n", GetDefaultDatabasePath())
	fmt.Printf("  --prefix      : Source prefix recorded with indexed images\n")
	fmt.Printf("  --force       : Reprocess files even when they appear unchanged\n")
	fmt.Printf("  --debug       : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile     : Specify custom log file path (default: imagetidy.log)\n")
	fmt.Printf("\nSupported image extensions: %s\n", strings.Join(imageprocessor.SupportedExtensions(), " "))
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s dedupe --folder=/path/to/images --dry-run\n", os.Args[0])
	fmt.Printf("  %s crop --image=/path/to/drawing.png --margin=0.05\n", os.Args[0])
	fmt.Printf("  %s resize --input=./imgs --output=./imgs-small --max-dim=300\n", os.Args[0])
	fmt.Printf("  %s index --folder=/path/to/images --prefix=ExternalDrive1\n", os.Args[0])
}

// ParseMargin parses and validates the crop margin fraction from string
func ParseMargin(marginStr string) (float64, error) {
	margin, err := strconv.ParseFloat(marginStr, 64)
	if err != nil || margin < 0 || margin > 1 {
		return 0.1, fmt.Errorf("invalid margin value '%s', using default (0.1)", marginStr)
	}
	return margin, nil
}

// ParseMaxDim parses and validates the resize maximum dimension from string
func ParseMaxDim(dimStr string) (int, error) {
	dim, err := strconv.Atoi(dimStr)
	if err != nil || dim < 1 {
		return 300, fmt.Errorf("invalid max-dim value '%s', using default (300)", dimStr)
	}
	return dim, nil
}
