// Пакет repository - доступ к таблицам PostgreSQL на pgx, SQL без ORM.
package repository

import (
	"context"
	"errors"
	"slices"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict - нарушение уникальности (например, занятый username).
	ErrConflict = errors.New("запись уже существует")
	// ErrLinkedFileNotFound - модель данных ссылается на несуществующий файл.
	ErrLinkedFileNotFound = errors.New("связанный файл не найден")
)

// DBTX покрывает *pgxpool.Pool и pgx.Tx; Begin внутри транзакции
// открывает savepoint.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// hasPgCode сообщает, содержит ли цепочка err ошибку PostgreSQL с кодом code.
func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isUniqueViolation(err error) bool {
	return hasPgCode(err, pgerrcode.UniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasPgCode(err, pgerrcode.ForeignKeyViolation)
}

func uniqueSorted(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
