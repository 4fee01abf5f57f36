package vc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

// PostgresRepository persists credentials in PostgreSQL as JSONB documents.
// The schema lives in the migrations package.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a PostgreSQL-backed repository. db is
// expected to use the pgx stdlib driver.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save inserts credential or replaces the stored document with the same id.
func (r *PostgresRepository) Save(ctx context.Context, credential *model.VerifiableCredential) error {
	if credential == nil || credential.ID() == "" {
		return model.Validation("id", "credential must have an id to be stored")
	}
	document, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	subject := ""
	if credential.Subject() != nil {
		subject = credential.Subject().ID()
	}

	query := `
		INSERT INTO credentials (id, issuer, subject, document, issued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET document = EXCLUDED.document
	`
	_, err = r.db.ExecContext(ctx, query,
		credential.ID(),
		credential.Issuer(),
		subject,
		document,
		credential.IssuanceDate(),
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*model.VerifiableCredential, error) {
	var document []byte
	err := r.db.QueryRowContext(ctx, `SELECT document FROM credentials WHERE id = $1`, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewError(model.KindNotFound, "id", "credential %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return model.ParseCredential(document)
}

func (r *PostgresRepository) FindBySubject(ctx context.Context, subjectDID string) ([]*model.VerifiableCredential, error) {
	return r.query(ctx, `
		SELECT document FROM credentials
		WHERE subject = $1
		ORDER BY issued_at, created_at
	`, subjectDID)
}

func (r *PostgresRepository) FindByIssuer(ctx context.Context, issuerDID string) ([]*model.VerifiableCredential, error) {
	return r.query(ctx, `
		SELECT document FROM credentials
		WHERE issuer = $1
		ORDER BY issued_at, created_at
	`, issuerDID)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.VerifiableCredential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	result := []*model.VerifiableCredential{}
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credential, err := model.ParseCredential(document)
		if err != nil {
			return nil, fmt.Errorf("decode stored credential: %w", err)
		}
		result = append(result, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return result, nil
}
