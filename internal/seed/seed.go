// Package seed 向数据库写入 arXiv 分类等初始数据，重复执行结果不变。
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ragsystem/internal/database"
	"ragsystem/internal/repository"
)

// CategoryYAML 是分类文件中的单条记录。
type CategoryYAML struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Parent      string `yaml:"parent,omitempty"`
}

// FileYAML 是分类文件的顶层结构。
type FileYAML struct {
	Version    string         `yaml:"version"`
	Categories []CategoryYAML `yaml:"categories"`
}

// Summary 统计一次写入的结果。
type Summary struct {
	Total    int
	Created  int
	Existing int
}

// BuiltinCategories 返回内置的常用 arXiv 分类。
func BuiltinCategories() []CategoryYAML {
	return []CategoryYAML{
		{Code: "cs.AI", Name: "Artificial Intelligence", Parent: "cs"},
		{Code: "cs.CL", Name: "Computation and Language", Parent: "cs"},
		{Code: "cs.CV", Name: "Computer Vision and Pattern Recognition", Parent: "cs"},
		{Code: "cs.IR", Name: "Information Retrieval", Parent: "cs"},
		{Code: "cs.LG", Name: "Machine Learning", Parent: "cs"},
		{Code: "cs.NE", Name: "Neural and Evolutionary Computing", Parent: "cs"},
		{Code: "stat.ML", Name: "Machine Learning (Statistics)", Parent: "stat"},
	}
}

// LoadFile 读取 YAML 分类文件。
func LoadFile(path string) ([]CategoryYAML, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open categories file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load 解析 YAML 分类列表，要求每条记录都有 code 与 name，code 不可重复。
func Load(r io.Reader) ([]CategoryYAML, error) {
	var file FileYAML
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse categories yaml: %w", err)
	}

	seen := make(map[string]bool, len(file.Categories))
	for i, c := range file.Categories {
		c.Code = strings.TrimSpace(c.Code)
		c.Name = strings.TrimSpace(c.Name)
		if c.Code == "" || c.Name == "" {
			return nil, fmt.Errorf("category #%d: code and name are required", i+1)
		}
		if seen[c.Code] {
			return nil, fmt.Errorf("category %q is listed twice", c.Code)
		}
		if c.Parent == "" {
			c.Parent, _, _ = strings.Cut(c.Code, ".")
		}
		seen[c.Code] = true
		file.Categories[i] = c
	}
	return file.Categories, nil
}

// Merge 合并分类列表，后出现的同 code 记录覆盖前者，保持首次出现的顺序。
func Merge(lists ...[]CategoryYAML) []CategoryYAML {
	index := map[string]int{}
	var out []CategoryYAML
	for _, list := range lists {
		for _, c := range list {
			if i, ok := index[c.Code]; ok {
				out[i] = c
				continue
			}
			index[c.Code] = len(out)
			out = append(out, c)
		}
	}
	return out
}

// Apply 在一个事务中 get-or-create 全部分类。dryRun 时只统计不写入。
func Apply(ctx context.Context, uow *repository.UnitOfWork, categories []CategoryYAML, dryRun bool) (Summary, error) {
	summary := Summary{Total: len(categories)}
	if dryRun {
		repo := uow.Repos(ctx).Categories()
		for _, c := range categories {
			existing, err := repo.GetByCode(ctx, c.Code)
			if err != nil {
				return summary, err
			}
			if existing != nil {
				summary.Existing++
			} else {
				summary.Created++
			}
		}
		return summary, nil
	}

	err := uow.Do(ctx, func(repos *repository.Factory) error {
		summary.Created, summary.Existing = 0, 0
		for _, c := range categories {
			existing, err := repos.Categories().GetByCode(ctx, c.Code)
			if err != nil {
				return err
			}
			if existing != nil {
				summary.Existing++
				continue
			}
			if _, err := repos.Categories().GetOrCreate(ctx, c.Code, database.Category{
				Name:           c.Name,
				Description:    c.Description,
				ParentCategory: c.Parent,
			}); err != nil {
				return fmt.Errorf("seed category %q: %w", c.Code, err)
			}
			summary.Created++
		}
		return nil
	})
	return summary, err
}
