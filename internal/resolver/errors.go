package resolver

import (
	"context"
	"errors"
	"fmt"

	"graphql-app-example/internal/cursor"
	"graphql-app-example/internal/logging"
	"graphql-app-example/internal/pagination"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Error codes reported in extensions.code.
const (
	CodeBadUserInput  = "BAD_USER_INPUT"
	CodeNotFound      = "NOT_FOUND"
	CodeForbidden     = "FORBIDDEN"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeTimeout       = "TIMEOUT"
	CodeInternal      = "INTERNAL_SERVER_ERROR"
)

// MySQL error codes
const (
	mysqlErrDBAccessDenied     = 1044 // Access denied for user to database
	mysqlErrTableAccessDenied  = 1142 // Command denied to user for table
	mysqlErrColumnAccessDenied = 1143 // Command denied to user for column
)

const pqInsufficientPrivilege = "42501"

// fieldError is a GraphQL field error carrying an extensions code.
type fieldError struct {
	message string
	code    string
	cause   error
}

func (e *fieldError) Error() string {
	return e.message
}

func (e *fieldError) Unwrap() error {
	return e.cause
}

func (e *fieldError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

func newFieldError(code string, cause error, format string, args ...any) error {
	return &fieldError{message: fmt.Sprintf(format, args...), code: code, cause: cause}
}

// inputError reports invalid cursor and page size arguments to the client.
func inputError(err error) error {
	if errors.Is(err, cursor.ErrInvalidCursor) || errors.Is(err, pagination.ErrInvalidPageSize) {
		return &fieldError{message: err.Error(), code: CodeBadUserInput, cause: err}
	}
	return err
}

// queryError logs a failed database call and returns the client-facing error.
func queryError(ctx context.Context, operation string, err error) error {
	if err == nil {
		return nil
	}
	logging.FromContext(ctx).Error("database query failed",
		"operation", operation,
		"error", err.Error(),
	)
	return normalizeQueryError(err)
}

// normalizeQueryError maps driver errors onto field errors so SQL text and
// driver messages stay out of responses.
func normalizeQueryError(err error) error {
	if err == nil {
		return nil
	}
	var fe *fieldError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &fieldError{message: "query cancelled or timed out", code: CodeTimeout, cause: err}
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
			return &fieldError{message: "access denied", code: CodeForbidden, cause: err}
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqInsufficientPrivilege {
		return &fieldError{message: "access denied", code: CodeForbidden, cause: err}
	}

	return &fieldError{message: "database query failed", code: CodeDatabaseError, cause: err}
}
