package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"ragsystem/internal/config"
	"ragsystem/internal/database"
	"ragsystem/internal/repository"
	"ragsystem/internal/seed"
)

func main() {
	var (
		file    = flag.String("file", "", "额外的分类 YAML 文件（可选，与内置列表合并，同 code 以文件为准）")
		noBuilt = flag.Bool("no-builtin", false, "不写入内置分类")
		dryRun  = flag.Bool("dry-run", false, "只统计将要创建的分类，不写入数据库")
	)
	flag.Parse()

	cfg := config.MustLoad()

	var categories []seed.CategoryYAML
	if !*noBuilt {
		categories = seed.BuiltinCategories()
	}
	if path := strings.TrimSpace(*file); path != "" {
		fromFile, err := seed.LoadFile(path)
		if err != nil {
			log.Fatalf("load categories: %v", err)
		}
		categories = seed.Merge(categories, fromFile)
	}
	if len(categories) == 0 {
		log.Fatal("nothing to seed: --no-builtin without --file")
	}

	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	summary, err := seed.Apply(context.Background(), repository.NewUnitOfWork(db), categories, *dryRun)
	if err != nil {
		log.Fatalf("seed categories: %v", err)
	}

	mode := "seeded"
	if *dryRun {
		mode = "dry run"
	}
	fmt.Printf("%s: %d categories, %d created, %d already present\n", mode, summary.Total, summary.Created, summary.Existing)
}
