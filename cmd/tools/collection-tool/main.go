// cmd/tools/collection-tool/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vendor-onboarding/pkg/collection"
)

var collectionPath string

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	bumpCmd := flag.NewFlagSet("bump", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{validateCmd, listCmd, bumpCmd} {
		fs.StringVar(&collectionPath, "path", "collections/onboarding-collection.json", "Path to collection file")
	}

	// Validate command flags
	sequences := validateCmd.String("sequences", "", "Semicolon separated sequences of comma separated step names that must resolve (e.g. \"Get Token,Start Process;Get Token,Publish Decision\")")

	// Bump command flags
	version := bumpCmd.String("version", "", "New collection version")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateCollection(*sequences); err != nil {
			fmt.Printf("Collection validation failed: %v\n", err)
			os.Exit(1)
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listSteps(); err != nil {
			fmt.Printf("Error listing steps: %v\n", err)
			os.Exit(1)
		}

	case "bump":
		bumpCmd.Parse(os.Args[2:])
		if *version == "" {
			fmt.Println("Error: version is required for bump.")
			bumpCmd.Usage()
			os.Exit(1)
		}
		if err := bumpVersion(*version); err != nil {
			fmt.Printf("Error updating collection: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Collection version set to %s\n", *version)

	case "help":
		fallthrough
	default:
		help()
	}
}

func validateCollection(sequences string) error {
	col, err := collection.Load(collectionPath)
	if err != nil {
		return err
	}
	if len(col.Steps) == 0 {
		return fmt.Errorf("collection contains no steps")
	}

	for _, seq := range strings.Split(sequences, ";") {
		if strings.TrimSpace(seq) == "" {
			continue
		}
		var names []string
		for _, n := range strings.Split(seq, ",") {
			names = append(names, strings.TrimSpace(n))
		}
		if _, err := col.Resolve(names); err != nil {
			return fmt.Errorf("sequence [%s]: %w", seq, err)
		}
	}

	fmt.Printf("Collection validation passed. %s v%s has %d steps.\n", col.Name, col.Version, len(col.Steps))
	return nil
}

func listSteps() error {
	col, err := collection.Load(collectionPath)
	if err != nil {
		return err
	}

	fmt.Printf("%s v%s (updated %s)\n", col.Name, col.Version, col.LastUpdated)
	for i, s := range col.Steps {
		target := ""
		switch {
		case s.Request != nil:
			target = s.Request.Method + " " + s.Request.URL
		case s.OAuth2 != nil:
			target = s.OAuth2.TokenURL
		case s.Zeebe != nil && s.Zeebe.BPMNProcessID != "":
			target = s.Zeebe.BPMNProcessID
		case s.Zeebe != nil:
			target = s.Zeebe.MessageName
		}
		fmt.Printf("%2d. %-32s %-22s %s\n", i+1, s.Name, s.Kind, target)
	}
	return nil
}

func bumpVersion(version string) error {
	col, err := collection.Load(collectionPath)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	col.Version = version
	col.LastUpdated = time.Now().Format(time.RFC3339)
	return saveCollection(col, collectionPath)
}

// saveCollection handles saving the collection to file
func saveCollection(col *collection.Collection, path string) error {
	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write collection file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: collection-tool <command> [flags]

Commands:
  validate  Check the collection structure and that step sequences resolve
  list      Print the steps of the collection
  bump      Set a new collection version
  help      Show this help message

Examples:
  collection-tool validate -path collections/onboarding-collection.json -sequences "1. Get JWT Token,2. Start Onboarding Workflow;1. Get JWT Token,4a. Submit Single Approver Response"
  collection-tool list
  collection-tool bump -version 1.1.0

Use 'collection-tool <command> -h' for more information about a command.

`)
}
