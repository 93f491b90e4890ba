package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"

	"imagetidy/database"
	"imagetidy/dedupe"
	"imagetidy/imageprocessor"
	"imagetidy/logging"
	"imagetidy/resizer"
	"imagetidy/scanner"
	"imagetidy/signalhandler"
	"imagetidy/utils"
)

func main() {
	// Set up proper signal handling
	signalhandler.SetupHandler()

	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	// Parse command line arguments into a map
	args := utils.ParseArguments()

	command, hasCommand := args["command"]

	// Setup debug logging if enabled
	debugMode := false
	if _, ok := args["debug"]; ok {
		debugMode = true
		logPath := "imagetidy.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			defer logging.CloseLogger()
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
	}

	// Check if required arguments are missing
	showUsage := !hasCommand

	if hasCommand {
		switch command {
		case "dedupe", "index":
			if args["folder"] == "" {
				showUsage = true
			}
		case "crop":
			if args["image"] == "" {
				showUsage = true
			}
		case "resize":
			if args["input"] == "" || args["output"] == "" {
				showUsage = true
			}
		}
	}

	if showUsage {
		utils.PrintUsage()
		os.Exit(1)
	}

	switch command {
	case "dedupe":
		handleDedupeCommand(args, debugMode)
	case "crop":
		handleCropCommand(args)
	case "resize":
		handleResizeCommand(args)
	case "index":
		handleIndexCommand(args, debugMode)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage()
		os.Exit(1)
	}
}

func handleDedupeCommand(args map[string]string, debugMode bool) {
	options := dedupe.Options{
		Root:      args["folder"],
		DebugMode: debugMode,
	}

	if _, ok := args["dry-run"]; ok {
		options.DryRun = true
	}
	if _, ok := args["keep-newest"]; ok {
		options.KeepNewest = true
	}
	if _, ok := args["exact"]; ok {
		options.ExactMatch = true
	}

	fmt.Printf("Scanning directory: %s\n", options.Root)
	fmt.Printf("Dry run: %v\n", options.DryRun)
	fmt.Printf("Keep newest: %v\n", options.KeepNewest)
	fmt.Printf("Exact match only: %v\n", options.ExactMatch)

	startTime := time.Now()

	result, err := dedupe.Run(options)
	if err != nil {
		log.Fatalf("Error removing duplicates: %v", err)
	}

	if result.Groups > 0 {
		fmt.Printf("\nSummary:\n")
		fmt.Printf("  Files kept: %d\n", result.FilesKept)
		if options.DryRun {
			fmt.Printf("  Files that would be removed: %d\n", result.FilesRemoved)
		} else {
			fmt.Printf("  Files removed: %d\n", result.FilesRemoved)
		}
	}

	fmt.Printf("\nTotal execution time: %v\n", time.Since(startTime))
}

func handleCropCommand(args map[string]string) {
	imagePath := args["image"]

	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		log.Fatalf("Image does not exist: %s", imagePath)
	}

	margin := imageprocessor.DefaultCropMargin
	if marginStr, ok := args["margin"]; ok {
		parsedMargin, err := utils.ParseMargin(marginStr)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else {
			margin = parsedMargin
		}
	}

	err := imageprocessor.CropToContent(imagePath, margin)
	if errors.Is(err, imageprocessor.ErrNoContent) {
		fmt.Printf("No content found in %s, file left unchanged.\n", imagePath)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Error cropping image: %v", err)
	}

	fmt.Printf("Cropped %s to content bounds (margin %.0f%%).\n", imagePath, margin*100)
}

func handleResizeCommand(args map[string]string) {
	options := resizer.Options{
		InputDir:  args["input"],
		OutputDir: args["output"],
		MaxDim:    300,
	}

	if dimStr, ok := args["max-dim"]; ok {
		parsedDim, err := utils.ParseMaxDim(dimStr)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else {
			options.MaxDim = parsedDim
		}
	}
	if _, ok := args["force"]; ok {
		options.Force = true
	}

	startTime := time.Now()

	result, err := resizer.Run(options)
	if err != nil {
		log.Fatalf("Error resizing images: %v", err)
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Resized: %d\n", result.Resized)
	fmt.Printf("  Copied (already small enough): %d\n", result.Copied)
	fmt.Printf("  Skipped (up to date): %d\n", result.Skipped)
	if result.Errors > 0 {
		fmt.Printf("  Errors: %d\n", result.Errors)
	}

	fmt.Printf("\nTotal execution time: %v\n", time.Since(startTime))
}

func handleIndexCommand(args map[string]string, debugMode bool) {
	folderPath := args["folder"]

	// Verify folder path exists and is accessible
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatalf("Folder path does not exist: %s", folderPath)
		} else {
			log.Fatalf("Cannot access folder path: %s (%v)", folderPath, err)
		}
	}
	if !folderInfo.IsDir() {
		log.Fatalf("Path is not a directory: %s", folderPath)
	}

	dbPath := utils.GetDefaultDatabasePath()
	if customDB, ok := args["database"]; ok && customDB != "" {
		dbPath = customDB
	} else if customDB, ok := args["db"]; ok && customDB != "" {
		// Allow --db as an alias for --database
		dbPath = customDB
	}

	sourcePrefix := ""
	if prefix, ok := args["prefix"]; ok {
		sourcePrefix = prefix
	}

	forceRewrite := false
	if _, ok := args["force"]; ok {
		forceRewrite = true
	}

	// Set up file-based logging if logfile is specified
	if logPath, ok := args["logfile"]; ok && logPath != "" {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()

		if debugMode {
			log.SetOutput(io.MultiWriter(os.Stdout, logFile))
		} else {
			log.SetOutput(logFile)
		}
	}

	startTime := time.Now()

	// Initialize database with retry logic
	var db *sql.DB
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		db, err = database.InitDatabase(dbPath)
		if err == nil {
			break
		}

		if i < maxRetries-1 {
			log.Printf("Error initializing database (attempt %d/%d): %v - retrying...",
				i+1, maxRetries, err)
			time.Sleep(time.Second * time.Duration(i+1))
		} else {
			log.Fatalf("Error initializing database after %d attempts: %v", maxRetries, err)
		}
	}
	defer db.Close()

	scanOptions := scanner.ScanOptions{
		FolderPath:   folderPath,
		SourcePrefix: sourcePrefix,
		ForceRewrite: forceRewrite,
		DebugMode:    debugMode,
		DbPath:       dbPath,
		MaxWorkers:   signalhandler.GetOptimalProcs(),
	}

	if err := scanner.ScanAndStoreFolder(db, scanOptions); err != nil {
		log.Fatalf("Error indexing folder: %v", err)
	}

	fmt.Printf("\nIndex completed successfully!\n")
	fmt.Printf("Total execution time: %v\n", time.Since(startTime))
	fmt.Printf("Database: %s\n", dbPath)

	// Print summary statistics if available
	stats, err := database.GetScanStats(db, sourcePrefix)
	if err == nil && stats != nil {
		fmt.Printf("\nSummary:\n")
		fmt.Printf("- Total images catalogued: %d\n", stats.TotalImages)
		fmt.Printf("- Unique image hashes: %d\n", stats.UniqueHashes)
		fmt.Printf("- Tagged images: %d\n", stats.TaggedImages)
	}
}
