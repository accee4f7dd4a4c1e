package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 仓储层错误分类。读操作找不到记录时返回 nil 结果而不是错误。
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("unique constraint conflict")
	ErrConnection = errors.New("storage unavailable")
)

// PostgreSQL SQLSTATE，归类为校验错误。
const (
	pgNotNullViolation       = "23502"
	pgStringTooLong          = "22001"
	pgInvalidTextRepresent   = "22P02"
	pgNumericValueOutOfRange = "22003"
)

func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case isClassified(err):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated),
		isPgValidationError(err):
		return fmt.Errorf("%s: %w: %w", op, ErrValidation, err)
	case isConnectionError(err):
		return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isClassified(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) || errors.Is(err, ErrConnection)
}

func isPgValidationError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgNotNullViolation, pgStringTooLong, pgInvalidTextRepresent, pgNumericValueOutOfRange:
		return true
	}
	return false
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classifyTxError 只为尚未分类的连接类错误补充 ErrConnection，业务回调返回的错误原样透传。
func classifyTxError(err error) error {
	if err == nil || isClassified(err) || !isConnectionError(err) {
		return err
	}
	return fmt.Errorf("unit of work: %w: %w", ErrConnection, err)
}
