package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ragsystem/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(false))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func mustCreatePaper(t *testing.T, repo *PaperRepository, p database.Paper) *database.Paper {
	t.Helper()
	if p.Abstract == "" {
		p.Abstract = "abstract of " + p.Title
	}
	if p.PublishedDate.IsZero() {
		p.PublishedDate = day(2024, 1, 1)
	}
	created, err := repo.Create(context.Background(), &p)
	if err != nil {
		t.Fatalf("create paper %q: %v", p.Title, err)
	}
	return created
}

func mustCreateResume(t *testing.T, repo *ResumeRepository, filename string) *database.Resume {
	t.Helper()
	created, err := repo.Create(context.Background(), &database.Resume{
		UserID:   "mock_user",
		Filename: filename,
		FileSize: 1024,
		FileType: strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
	})
	if err != nil {
		t.Fatalf("create resume %q: %v", filename, err)
	}
	return created
}

func mustCreateJob(t *testing.T, repo *JobDescriptionRepository, title, company string) *database.JobDescription {
	t.Helper()
	created, err := repo.Create(context.Background(), &database.JobDescription{
		Title:       title,
		Company:     company,
		Description: title + " at " + company,
	})
	if err != nil {
		t.Fatalf("create job %q: %v", title, err)
	}
	return created
}
