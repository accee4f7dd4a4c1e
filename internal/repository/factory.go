package repository

import (
	"context"

	"gorm.io/gorm"
)

// Factory 把所有仓储绑定到同一个数据库句柄上。
// 在 UnitOfWork 中使用时，这个句柄就是当前事务，每次调用返回新的仓储实例。
type Factory struct {
	db *gorm.DB
}

func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

func (f *Factory) Papers() *PaperRepository { return NewPaperRepository(f.db) }
func (f *Factory) Authors() *AuthorRepository { return NewAuthorRepository(f.db) }
func (f *Factory) Categories() *CategoryRepository { return NewCategoryRepository(f.db) }
func (f *Factory) Chunks() *ChunkRepository { return NewChunkRepository(f.db) }
func (f *Factory) Resumes() *ResumeRepository { return NewResumeRepository(f.db) }
func (f *Factory) Jobs() *JobDescriptionRepository { return NewJobDescriptionRepository(f.db) }
func (f *Factory) JobMatches() *JobMatchRepository { return NewJobMatchRepository(f.db) }

// UnitOfWork 为一次逻辑请求开启一个事务。
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do 在事务中执行 fn：返回 nil 时提交，返回错误或 panic 时回滚（panic 会继续向上抛出）。
// fn 返回的错误原样返回；连接类错误归类为 ErrConnection。
func (u *UnitOfWork) Do(ctx context.Context, fn func(repos *Factory) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewFactory(tx))
	})
	return classifyTxError(err)
}

// Repos 返回不在事务内的仓储，用于只读请求。
func (u *UnitOfWork) Repos(ctx context.Context) *Factory {
	return NewFactory(u.db.WithContext(ctx))
}
