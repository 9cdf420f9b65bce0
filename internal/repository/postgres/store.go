// Package postgres implements the repository contracts on PostgreSQL via
// pgx. One Store wraps the shared pool; InTx hands callers a
// transaction-scoped accessor over the same SQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"procureflow.io/procureflow/internal/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// accessor hands out repositories bound to one querier.
type accessor struct {
	q querier
}

func (a accessor) Lookups() repository.LookupRepository                     { return &lookupRepo{q: a.q} }
func (a accessor) Teams() repository.TeamRepository                         { return &teamRepo{q: a.q} }
func (a accessor) Users() repository.UserRepository                         { return &userRepo{q: a.q} }
func (a accessor) Scopes() repository.ScopeRepository                       { return &scopeRepo{q: a.q} }
func (a accessor) FormTemplates() repository.FormTemplateRepository         { return &formTemplateRepo{q: a.q} }
func (a accessor) WorkflowTemplates() repository.WorkflowTemplateRepository { return &workflowTemplateRepo{q: a.q} }
func (a accessor) Configs() repository.ConfigRepository                     { return &configRepo{q: a.q} }
func (a accessor) Categories() repository.CategoryRepository                { return &categoryRepo{q: a.q} }
func (a accessor) Requests() repository.RequestRepository                   { return &requestRepo{q: a.q} }
func (a accessor) FieldValues() repository.FieldValueRepository             { return &fieldValueRepo{q: a.q} }
func (a accessor) Attachments() repository.AttachmentRepository             { return &attachmentRepo{q: a.q} }
func (a accessor) Approvals() repository.ApprovalRepository                 { return &approvalRepo{q: a.q} }
func (a accessor) Audit() repository.AuditRepository                        { return &auditRepo{q: a.q} }
func (a accessor) Notifications() repository.NotificationRepository         { return &notificationRepo{q: a.q} }

// Store is the pool-backed root store.
type Store struct {
	accessor
	pool *pgxpool.Pool
}

// NewStore creates a Store over the shared pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{accessor: accessor{q: pool}, pool: pool}
}

// txAccessor scopes repositories to one transaction.
type txAccessor struct {
	accessor
}

// InTx runs fn inside a transaction. The transaction commits iff fn returns
// nil; any error rolls back. Serialization failures surface as
// repository.ErrSerialization so the engine's bounded retry can fire.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(txAccessor{accessor{q: tx}}); err != nil {
		return mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// mapPgError folds PostgreSQL failure classes onto repository sentinels.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			// serialization_failure, deadlock_detected, lock_not_available
			return fmt.Errorf("%w: %s", repository.ErrSerialization, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return err
}

// noRows maps pgx.ErrNoRows onto the repository sentinel.
func noRows(err error, entity, key string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, key, repository.ErrNotFound)
	}
	return err
}
