package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"casebrief-backend/config"
	"casebrief-backend/models"
	"casebrief-backend/repository"

	"gopkg.in/yaml.v3"
)

// seedFile is the optional YAML document accepted by -file
type seedFile struct {
	Cases []models.CaseFields `yaml:"cases"`
}

var defaultCases = []models.CaseFields{
	{
		Title:        "Brown v. Board of Education",
		DecisionDate: "1954",
		Citation:     "347 U.S. 483",
		Jurisdiction: "Supreme Court of the United States",
	},
	{
		Title:        "Marbury v. Madison",
		DecisionDate: "1803",
		Citation:     "5 U.S. 137",
		Jurisdiction: "Supreme Court of the United States",
	},
	{
		Title:        "Miranda v. Arizona",
		DecisionDate: "1966",
		Citation:     "384 U.S. 436",
		Jurisdiction: "Supreme Court of the United States",
	},
	{
		Title:        "Donoghue v Stevenson",
		DecisionDate: "1932",
		Citation:     "[1932] UKHL 100",
		Jurisdiction: "House of Lords",
	},
}

func main() {
	file := flag.String("file", "", "YAML file with a top-level cases list")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cases := defaultCases
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *file, err)
		}
		var doc seedFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			log.Fatalf("Failed to parse %s: %v", *file, err)
		}
		cases = doc.Cases
	}

	ctx := context.Background()
	store, err := repository.Open(ctx, cfg.StoreType, cfg.DatabaseURL, cfg.BadgerPath)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreType, err)
	}
	defer store.Close()

	existing, err := store.ListCases(ctx, 0, 0)
	if err != nil {
		log.Fatalf("Failed to list cases: %v", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.Title] = true
	}

	created := 0
	for _, fields := range cases {
		if fields.Title == "" {
			log.Printf("Warning: Skipping case without a title")
			continue
		}
		if seen[fields.Title] {
			log.Printf("Case %q already exists", fields.Title)
			continue
		}
		c, err := store.CreateCase(ctx, fields)
		if err != nil {
			log.Fatalf("Failed to create case %q: %v", fields.Title, err)
		}
		seen[fields.Title] = true
		created++
		fmt.Printf("   %s  %s\n", c.ID, c.Title)
	}

	fmt.Printf("✅ Seeded %d case(s) into the %s store\n", created, cfg.StoreType)
}
