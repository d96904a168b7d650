package hashchain

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-books/meridian/internal/platform/db"
	"github.com/meridian-books/meridian/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx-backed chain store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) AppendLink(ctx context.Context, chain string, link ChainLink) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO chain_links
(id, chain, sequence, previous_hash, content_hash, linked_at)
VALUES ($1, $2, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM chain_links WHERE chain = $2), $3, $4, $5)`,
		link.ID, chain, link.PreviousHash.String(), link.ContentHash.String(), link.Timestamp)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return shared.Wrap(shared.KindConflictDetected, "hashchain: concurrent append", err)
		}
		return err
	}
	return nil
}

func (r *repository) TailHash(ctx context.Context, chain string) (ContentHash, error) {
	var prev, content string
	var ts time.Time
	err := r.pool.QueryRow(ctx, `SELECT previous_hash, content_hash, linked_at
FROM chain_links WHERE chain = $1 ORDER BY sequence DESC LIMIT 1`, chain).Scan(&prev, &content, &ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContentHash{}, nil
		}
		return ContentHash{}, err
	}
	link := ChainLink{Timestamp: ts}
	if link.PreviousHash, err = ParseHash(prev); err != nil {
		return ContentHash{}, shared.Wrap(shared.KindIntegrityViolation, "hashchain: stored previous hash corrupt", err)
	}
	if link.ContentHash, err = ParseHash(content); err != nil {
		return ContentHash{}, shared.Wrap(shared.KindIntegrityViolation, "hashchain: stored content hash corrupt", err)
	}
	return link.ComputeHash(), nil
}

func (r *repository) ListLinks(ctx context.Context, chain string) ([]ChainLink, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sequence, previous_hash, content_hash, linked_at
FROM chain_links WHERE chain = $1 ORDER BY sequence ASC`, chain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []ChainLink
	for rows.Next() {
		var link ChainLink
		var prev, content string
		if err := rows.Scan(&link.ID, &link.Sequence, &prev, &content, &link.Timestamp); err != nil {
			return nil, err
		}
		if link.PreviousHash, err = ParseHash(prev); err != nil {
			return nil, shared.Wrap(shared.KindIntegrityViolation, "hashchain: stored previous hash corrupt", err)
		}
		if link.ContentHash, err = ParseHash(content); err != nil {
			return nil, shared.Wrap(shared.KindIntegrityViolation, "hashchain: stored content hash corrupt", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *repository) SaveProof(ctx context.Context, proof Proof) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO approval_proofs
(id, entity_type, entity_id, approval_type, approver_id, entity_hash, approved_at, notes, proof_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		proof.ID, proof.EntityType, proof.EntityID, proof.ApprovalType, proof.ApproverID,
		proof.EntityHash.String(), proof.ApprovedAt, proof.Notes, proof.ProofHash.String())
	if err != nil && db.IsUniqueViolation(err) {
		return shared.Wrap(shared.KindConflictDetected, "hashchain: proof already recorded", err)
	}
	return err
}

func (r *repository) FindProof(ctx context.Context, entityType, entityID string) (Proof, error) {
	var proof Proof
	var entityHash, proofHash string
	err := r.pool.QueryRow(ctx, `SELECT id, entity_type, entity_id, approval_type, approver_id, entity_hash, approved_at, notes, proof_hash
FROM approval_proofs WHERE entity_type = $1 AND entity_id = $2 ORDER BY approved_at DESC LIMIT 1`,
		entityType, entityID).Scan(&proof.ID, &proof.EntityType, &proof.EntityID, &proof.ApprovalType,
		&proof.ApproverID, &entityHash, &proof.ApprovedAt, &proof.Notes, &proofHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proof{}, shared.Ef(shared.KindNotFound, "hashchain: no proof for %s/%s", entityType, entityID)
		}
		return Proof{}, err
	}
	if proof.EntityHash, err = ParseHash(entityHash); err != nil {
		return Proof{}, shared.Wrap(shared.KindIntegrityViolation, "hashchain: stored entity hash corrupt", err)
	}
	if proof.ProofHash, err = ParseHash(proofHash); err != nil {
		return Proof{}, shared.Wrap(shared.KindIntegrityViolation, "hashchain: stored proof hash corrupt", err)
	}
	proof.ApprovedAt = proof.ApprovedAt.UTC().Truncate(time.Microsecond)
	return proof, nil
}
