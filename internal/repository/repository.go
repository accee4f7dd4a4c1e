package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Filters 是按列名组织的查询条件：标量为等值匹配，slice 为 IN 匹配，多个条件取 AND。
// 不存在的列名会被忽略。
type Filters map[string]any

// Fields 是按列名组织的写入值，nil 值表示"不修改"。
type Fields map[string]any

// ListOptions 控制分页与排序。Limit 为 0 表示不限制，OrderBy 为未知列时忽略排序。
type ListOptions struct {
	Limit   int
	Offset  int
	OrderBy string
	Desc    bool
}

type identifiable interface {
	GetID() uint
}

// Repository 是对单个实体类型的通用 CRUD 仓储。
// db 可以是普通连接，也可以是事务句柄，仓储本身从不提交或回滚。
type Repository[T any] struct {
	db *gorm.DB
}

func NewRepository[T any](db *gorm.DB) *Repository[T] {
	return &Repository[T]{db: db}
}

func (r *Repository[T]) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// schema 解析结果由 gorm 按类型缓存，重复调用不会重新解析。
func (r *Repository[T]) schema() (*schema.Schema, error) {
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("parse %T schema: %w", *new(T), err)
	}
	return stmt.Schema, nil
}

func (r *Repository[T]) table() string {
	if sch, err := r.schema(); err == nil {
		return sch.Table
	}
	return fmt.Sprintf("%T", *new(T))
}

// column 返回可查询的数据库列，关联字段和未知名称返回 nil。
func column(sch *schema.Schema, name string) *schema.Field {
	field := sch.LookUpField(name)
	if field == nil || field.DBName == "" {
		return nil
	}
	return field
}

func writable(field *schema.Field) bool {
	return !field.PrimaryKey && field.AutoCreateTime == 0 && field.AutoUpdateTime == 0
}

// conditions 把 Filters 转换为 where 表达式。allowIn 为 false 时 slice 值被忽略。
func conditions(sch *schema.Schema, filters map[string]any, allowIn bool) []clause.Expression {
	exprs := make([]clause.Expression, 0, len(filters))
	for name, value := range filters {
		field := column(sch, name)
		if field == nil {
			continue
		}
		col := clause.Column{Table: sch.Table, Name: field.DBName}
		if values, ok := listValues(value); ok {
			if !allowIn {
				continue
			}
			exprs = append(exprs, clause.IN{Column: col, Values: values})
			continue
		}
		if value == nil {
			exprs = append(exprs, clause.Eq{Column: col, Value: nil})
			continue
		}
		exprs = append(exprs, clause.Eq{Column: col, Value: value})
	}
	return exprs
}

func listValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func where(tx *gorm.DB, exprs []clause.Expression) *gorm.DB {
	for _, expr := range exprs {
		tx = tx.Where(expr)
	}
	return tx
}

func paginate(tx *gorm.DB, sch *schema.Schema, opts ListOptions) *gorm.DB {
	if opts.OrderBy != "" {
		if field := column(sch, opts.OrderBy); field != nil {
			tx = tx.Order(clause.OrderByColumn{
				Column: clause.Column{Table: sch.Table, Name: field.DBName},
				Desc:   opts.Desc,
			})
		}
	}
	if opts.Offset > 0 {
		tx = tx.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		tx = tx.Limit(opts.Limit)
	}
	return tx
}

// Create 校验并插入实体，返回重新读取的记录，包含数据库生成的默认值。
func (r *Repository[T]) Create(ctx context.Context, entity *T) (*T, error) {
	op := "create " + r.table()
	if entity == nil {
		return nil, fmt.Errorf("%s: %w: nil entity", op, ErrValidation)
	}
	if err := validateEntity(entity); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.conn(ctx).Create(entity).Error; err != nil {
		return nil, translateError(op, err)
	}

	id, ok := any(entity).(identifiable)
	if !ok {
		return entity, nil
	}
	return r.GetByID(ctx, id.GetID())
}

// GetByID 按主键读取，不存在时返回 nil, nil。
func (r *Repository[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var out T
	err := r.conn(ctx).Take(&out, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get "+r.table(), err)
	}
	return &out, nil
}

// GetByField 按单列等值读取一条记录。
func (r *Repository[T]) GetByField(ctx context.Context, field string, value any) (*T, error) {
	sch, err := r.schema()
	if err != nil {
		return nil, err
	}
	f := column(sch, field)
	if f == nil {
		return nil, nil
	}

	var out T
	err = r.conn(ctx).
		Where(clause.Eq{Column: clause.Column{Table: sch.Table, Name: f.DBName}, Value: value}).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get "+sch.Table+" by "+f.DBName, err)
	}
	return &out, nil
}

func (r *Repository[T]) GetAll(ctx context.Context, opts ListOptions) ([]T, error) {
	return r.GetByFilters(ctx, nil, opts)
}

// GetByFilters 返回满足全部条件的记录。
func (r *Repository[T]) GetByFilters(ctx context.Context, filters Filters, opts ListOptions) ([]T, error) {
	sch, err := r.schema()
	if err != nil {
		return nil, err
	}
	return r.find(ctx, "list "+sch.Table, func(tx *gorm.DB) *gorm.DB {
		return paginate(where(tx, conditions(sch, filters, true)), sch, opts)
	})
}

// find 执行自定义查询并统一错误处理，供专用仓储复用。
func (r *Repository[T]) find(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) ([]T, error) {
	var out []T
	if err := scope(r.conn(ctx).Model(new(T))).Find(&out).Error; err != nil {
		return nil, translateError(op, err)
	}
	return out, nil
}

// Update 只写入非 nil 的已知可写列，主键和时间戳列被忽略，updated_at 自动刷新。
// 记录不存在时返回 nil, nil。没有可写列时不发生写入，直接返回当前记录。
func (r *Repository[T]) Update(ctx context.Context, id uint, fields Fields) (*T, error) {
	sch, err := r.schema()
	if err != nil {
		return nil, err
	}
	op := "update " + sch.Table

	values := make(map[string]any, len(fields))
	for name, value := range fields {
		if isNull(value) {
			continue
		}
		field := column(sch, name)
		if field == nil || !writable(field) {
			continue
		}
		value = coerce(field, value)
		if err := validateColumn(field, value); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		values[field.DBName] = value
	}
	if len(values) == 0 {
		return r.GetByID(ctx, id)
	}

	res := r.conn(ctx).Model(new(T)).Where(r.byID(sch, id)).Updates(values)
	if res.Error != nil {
		return nil, translateError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *Repository[T]) byID(sch *schema.Schema, id uint) clause.Expression {
	name := "id"
	if sch.PrioritizedPrimaryField != nil {
		name = sch.PrioritizedPrimaryField.DBName
	}
	return clause.Eq{Column: clause.Column{Table: sch.Table, Name: name}, Value: id}
}

// Delete 物理删除一条记录，子表由外键级联删除。
func (r *Repository[T]) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.conn(ctx).Delete(new(T), id)
	if res.Error != nil {
		return false, translateError("delete "+r.table(), res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteByFilters 删除满足条件的记录并返回删除数量。
// 没有任何可识别条件时不执行删除，返回 0。
func (r *Repository[T]) DeleteByFilters(ctx context.Context, filters Filters) (int64, error) {
	sch, err := r.schema()
	if err != nil {
		return 0, err
	}
	exprs := conditions(sch, filters, true)
	if len(exprs) == 0 {
		return 0, nil
	}
	res := where(r.conn(ctx), exprs).Delete(new(T))
	if res.Error != nil {
		return 0, translateError("delete "+sch.Table, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *Repository[T]) Count(ctx context.Context, filters Filters) (int64, error) {
	sch, err := r.schema()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := where(r.conn(ctx).Model(new(T)), conditions(sch, filters, true)).Count(&n).Error; err != nil {
		return 0, translateError("count "+sch.Table, err)
	}
	return n, nil
}

// Exists 只支持等值条件；没有可识别条件时返回 false。
func (r *Repository[T]) Exists(ctx context.Context, fields Fields) (bool, error) {
	sch, err := r.schema()
	if err != nil {
		return false, err
	}
	exprs := conditions(sch, fields, false)
	if len(exprs) == 0 {
		return false, nil
	}
	var n int64
	if err := where(r.conn(ctx).Model(new(T)), exprs).Count(&n).Error; err != nil {
		return false, translateError("exists "+sch.Table, err)
	}
	return n > 0, nil
}

// BulkCreate 在同一个保存点内插入全部实体，任一失败则全部回滚。
// 返回的记录与输入顺序一致。
func (r *Repository[T]) BulkCreate(ctx context.Context, entities []*T) ([]T, error) {
	op := "bulk create " + r.table()
	if len(entities) == 0 {
		return []T{}, nil
	}
	for i, entity := range entities {
		if entity == nil {
			return nil, fmt.Errorf("%s: %w: nil entity at %d", op, ErrValidation, i)
		}
		if err := validateEntity(entity); err != nil {
			return nil, fmt.Errorf("%s: item %d: %w", op, i, err)
		}
	}

	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entities).Error
	})
	if err != nil {
		return nil, translateError(op, err)
	}

	ids := make([]uint, 0, len(entities))
	for _, entity := range entities {
		id, ok := any(entity).(identifiable)
		if !ok {
			out := make([]T, len(entities))
			for i, e := range entities {
				out[i] = *e
			}
			return out, nil
		}
		ids = append(ids, id.GetID())
	}

	var rows []T
	if err := r.conn(ctx).Find(&rows, ids).Error; err != nil {
		return nil, translateError(op, err)
	}
	byID := make(map[uint]T, len(rows))
	for _, row := range rows {
		byID[any(&row).(identifiable).GetID()] = row
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// GetWithRelations 读取记录并预加载指定关联。关联名可以是 Go 字段名（PaperAuthors）
// 或下划线形式（paper_authors），嵌套关联用点号分隔（PaperAuthors.Author）。未知名称被忽略。
func (r *Repository[T]) GetWithRelations(ctx context.Context, id uint, relations ...string) (*T, error) {
	sch, err := r.schema()
	if err != nil {
		return nil, err
	}
	tx := r.conn(ctx)
	for _, name := range relations {
		if path, ok := r.relationPath(sch, name); ok {
			tx = tx.Preload(path)
		}
	}

	var out T
	err = tx.Take(&out, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get "+sch.Table+" with relations", err)
	}
	return &out, nil
}

func (r *Repository[T]) relationPath(sch *schema.Schema, name string) (string, bool) {
	cur := sch
	parts := strings.Split(name, ".")
	for i, part := range parts {
		rel := r.lookupRelation(cur, strings.TrimSpace(part))
		if rel == nil {
			return "", false
		}
		parts[i] = rel.Name
		cur = rel.FieldSchema
	}
	return strings.Join(parts, "."), true
}

func (r *Repository[T]) lookupRelation(sch *schema.Schema, name string) *schema.Relationship {
	if name == "" {
		return nil
	}
	sch.Relationships.Mux.RLock()
	defer sch.Relationships.Mux.RUnlock()

	if rel, ok := sch.Relationships.Relations[name]; ok {
		return rel
	}
	for relName, rel := range sch.Relationships.Relations {
		if strings.HasPrefix(relName, "_") {
			continue
		}
		if r.db.NamingStrategy.ColumnName("", relName) == name || strings.EqualFold(relName, name) {
			return rel
		}
	}
	return nil
}

// build 用 Fields 构造一个新实体，规则与 Update 相同。
func (r *Repository[T]) build(ctx context.Context, fields Fields) (*T, error) {
	sch, err := r.schema()
	if err != nil {
		return nil, err
	}
	entity := new(T)
	rv := reflect.ValueOf(entity).Elem()
	for name, value := range fields {
		if isNull(value) {
			continue
		}
		field := column(sch, name)
		if field == nil || !writable(field) {
			continue
		}
		if err := field.Set(ctx, rv, coerce(field, value)); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrValidation, field.DBName, err)
		}
	}
	return entity, nil
}

// createInSavepoint 在嵌套事务（保存点）中创建实体，唯一约束冲突只回滚到保存点，
// 外层事务仍然可用。
func (r *Repository[T]) createInSavepoint(ctx context.Context, entity *T) (*T, error) {
	var created *T
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = NewRepository[T](tx).Create(ctx, entity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// firstOrCreate 先按 find 查找，找不到时创建。并发创建导致唯一约束冲突时重新查找，
// 返回胜出方写入的记录。
func (r *Repository[T]) firstOrCreate(ctx context.Context, find func(context.Context) (*T, error), entity *T) (*T, error) {
	existing, err := find(ctx)
	if err != nil || existing != nil {
		return existing, err
	}

	created, err := r.createInSavepoint(ctx, entity)
	if errors.Is(err, ErrConflict) {
		existing, findErr := find(ctx)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	return created, err
}
