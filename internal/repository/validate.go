package repository

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm/schema"
)

var validate = validator.New()

func validateEntity(entity any) error {
	if err := validate.Struct(entity); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// validateColumn 用模型字段上的 validate 标签校验单列取值，用于部分更新。
// NOT NULL 且带默认值的列，omitempty 只服务于创建时回落到默认值，更新时不允许写入零值。
func validateColumn(field *schema.Field, value any) error {
	tag := field.Tag.Get("validate")
	if tag == "" {
		return nil
	}
	if field.NotNull && field.HasDefaultValue {
		tag = strings.TrimPrefix(strings.TrimPrefix(tag, "omitempty"), ",")
		if tag == "" {
			return nil
		}
	}
	if err := validate.Var(value, tag); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrValidation, field.DBName, err)
	}
	return nil
}

// isNull 把 nil 以及值为 nil 的指针、map、slice 都视为缺省。
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// coerce 把调用方传入的取值转换为列的 Go 类型，例如 map[string]any 转 datatypes.JSONMap、
// []float64 转 *datatypes.JSONSlice[float64]。不兼容的取值原样返回，由驱动或校验报错。
func coerce(field *schema.Field, v any) any {
	rv := reflect.ValueOf(v)
	target := field.FieldType
	if rv.Type() == target {
		return v
	}
	if target.Kind() == reflect.Ptr && compatible(rv.Type(), target.Elem()) {
		p := reflect.New(target.Elem())
		p.Elem().Set(rv.Convert(target.Elem()))
		return p.Interface()
	}
	if compatible(rv.Type(), target) {
		return rv.Convert(target).Interface()
	}
	return v
}

func compatible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if from.Kind() == to.Kind() {
		return true
	}
	return isNumeric(from.Kind()) && isNumeric(to.Kind())
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
