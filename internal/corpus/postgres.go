package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
)

const (
	insertChunk = `INSERT INTO chunks(id, contract_id, page, position, text)
		VALUES ($1, $2, $3, $4, $5)`
	insertClause = `INSERT INTO clauses(id, contract_id, ordinal, title, text, confidence, chunk_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	insertInsight = `INSERT INTO insights(id, contract_id, ordinal, type, text, severity, clause_ids, chunk_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

// PostgresBackend persists records in the contracts, chunks, clauses, and
// insights tables. Owned rows cascade from contracts.
type PostgresBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBackend creates a backend over an open database.
func NewPostgresBackend(db *sql.DB, logger *slog.Logger) *PostgresBackend {
	return &PostgresBackend{
		db:     db,
		logger: logger.With("system", "corpus.postgres"),
	}
}

func (p *PostgresBackend) Load(ctx context.Context) ([]Record, error) {
	q, args := query.NewBuilder(contractProjection, contractSort...).Build()
	contracts, err := repository.QueryMany(ctx, p.db, q, args, scanContract)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}

	q, args = query.NewBuilder(chunkProjection, chunkSort...).Build()
	chunks, err := repository.QueryMany(ctx, p.db, q, args, scanChunk)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	q, args = query.NewBuilder(clauseProjection, ordinalSort...).Build()
	clauses, err := repository.QueryMany(ctx, p.db, q, args, scanClause)
	if err != nil {
		return nil, fmt.Errorf("query clauses: %w", err)
	}

	q, args = query.NewBuilder(insightProjection, ordinalSort...).Build()
	insights, err := repository.QueryMany(ctx, p.db, q, args, scanInsight)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}

	p.logger.Info(
		"corpus loaded",
		"contracts", len(contracts),
		"chunks", len(chunks),
		"clauses", len(clauses),
		"insights", len(insights),
	)

	byID := make(map[uuid.UUID]*Record, len(contracts))
	records := make([]Record, len(contracts))
	for i, c := range contracts {
		records[i].Contract = c
		byID[c.ID] = &records[i]
	}
	for _, c := range chunks {
		if rec, ok := byID[c.ContractID]; ok {
			rec.Chunks = append(rec.Chunks, c)
		}
	}
	for _, c := range clauses {
		if rec, ok := byID[c.ContractID]; ok {
			rec.Clauses = append(rec.Clauses, c)
		}
	}
	for _, in := range insights {
		if rec, ok := byID[in.ContractID]; ok {
			rec.Insights = append(rec.Insights, in)
		}
	}

	return records, nil
}

func (p *PostgresBackend) Save(ctx context.Context, rec Record) error {
	err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM contracts WHERE id = $1", rec.Contract.ID); err != nil {
			return err
		}

		if err := insertContract(ctx, tx, rec.Contract); err != nil {
			return fmt.Errorf("insert contract: %w", err)
		}

		err := repository.ExecEach(ctx, tx, insertChunk, rec.Chunks, func(_ int, c Chunk) []any {
			return []any{c.ID, c.ContractID, c.Page, c.Position, c.Text}
		})
		if err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}

		err = repository.ExecEach(ctx, tx, insertClause, rec.Clauses, func(i int, c Clause) []any {
			return []any{c.ID, c.ContractID, i, c.Title, c.Text, c.Confidence, mustJSON(c.ChunkIDs)}
		})
		if err != nil {
			return fmt.Errorf("insert clauses: %w", err)
		}

		err = repository.ExecEach(ctx, tx, insertInsight, rec.Insights, func(i int, in Insight) []any {
			return []any{
				in.ID, in.ContractID, i, string(in.Type), in.Text, string(in.Severity),
				mustJSON(in.ClauseIDs), mustJSON(in.ChunkIDs),
			}
		})
		if err != nil {
			return fmt.Errorf("insert insights: %w", err)
		}

		return nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func (p *PostgresBackend) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		return repository.ExecExpectOne(ctx, tx, "DELETE FROM contracts WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func insertContract(ctx context.Context, tx *sql.Tx, c Contract) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO contracts(
			id, name, parties, expiry_date, uploaded_at, status, risk,
			filename, content_type, size_bytes, page_count, locator, digest, warnings
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.Name, mustJSON(c.Parties), c.ExpiryDate, c.UploadedAt,
		string(c.Status), string(c.Risk), c.Filename, c.ContentType,
		c.SizeBytes, c.PageCount, c.Locator, c.Digest, mustJSON(c.Warnings),
	)
	return err
}

func scanContract(s repository.Scanner) (Contract, error) {
	var (
		c        Contract
		status   string
		risk     string
		parties  []byte
		warnings []byte
	)
	err := s.Scan(
		&c.ID,
		&c.Name,
		&parties,
		&c.ExpiryDate,
		&c.UploadedAt,
		&status,
		&risk,
		&c.Filename,
		&c.ContentType,
		&c.SizeBytes,
		&c.PageCount,
		&c.Locator,
		&c.Digest,
		&warnings,
	)
	if err != nil {
		return c, err
	}

	c.Status = Status(status)
	c.Risk = Risk(risk)
	c.ExpiryDate = c.ExpiryDate.UTC()
	c.UploadedAt = c.UploadedAt.UTC()

	if err := unmarshalJSON(parties, &c.Parties); err != nil {
		return c, fmt.Errorf("parties: %w", err)
	}
	if err := unmarshalJSON(warnings, &c.Warnings); err != nil {
		return c, fmt.Errorf("warnings: %w", err)
	}
	return c, nil
}

func scanChunk(s repository.Scanner) (Chunk, error) {
	var c Chunk
	err := s.Scan(&c.ID, &c.ContractID, &c.Page, &c.Position, &c.Text)
	return c, err
}

func scanClause(s repository.Scanner) (Clause, error) {
	var (
		c       Clause
		refs    []byte
		ordinal int
	)
	if err := s.Scan(&c.ID, &c.ContractID, &c.Title, &c.Text, &c.Confidence, &refs, &ordinal); err != nil {
		return c, err
	}
	return c, unmarshalJSON(refs, &c.ChunkIDs)
}

func scanInsight(s repository.Scanner) (Insight, error) {
	var (
		in       Insight
		typ      string
		severity string
		clauses  []byte
		chunks   []byte
		ordinal  int
	)
	if err := s.Scan(&in.ID, &in.ContractID, &typ, &in.Text, &severity, &clauses, &chunks, &ordinal); err != nil {
		return in, err
	}
	in.Type = InsightType(typ)
	in.Severity = Risk(severity)

	if err := unmarshalJSON(clauses, &in.ClauseIDs); err != nil {
		return in, err
	}
	return in, unmarshalJSON(chunks, &in.ChunkIDs)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal %T: %v", v, err))
	}
	return data
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
