package hashchain

import (
	"context"
	"log/slog"

	"github.com/meridian-books/meridian/internal/platform/cache"
	"github.com/meridian-books/meridian/internal/shared"
)

// Repository persists chain links and proofs. Both tables are append-only.
type Repository interface {
	AppendLink(ctx context.Context, chain string, link ChainLink) error
	TailHash(ctx context.Context, chain string) (ContentHash, error)
	ListLinks(ctx context.Context, chain string) ([]ChainLink, error)
	SaveProof(ctx context.Context, proof Proof) error
	FindProof(ctx context.Context, entityType, entityID string) (Proof, error)
}

// Metrics counts chain activity for the instrumentation layer.
type Metrics interface {
	ChainAppended()
	IntegrityFailure()
}

// Service serializes appends and walks chains for integrity checks.
type Service struct {
	repo    Repository
	locker  *cache.Locker
	clock   shared.Clock
	logger  *slog.Logger
	metrics Metrics
}

// NewService constructs the chain service.
func NewService(repo Repository, locker *cache.Locker, clock shared.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Service{repo: repo, locker: locker, clock: clock, logger: logger}
}

// WithMetrics attaches chain instrumentation and returns the service.
func (s *Service) WithMetrics(m Metrics) *Service {
	s.metrics = m
	return s
}

// Append links new content onto the chain tail. Appends are serialized
// through the tail lock: each link's previous hash must reference the
// true current tail or the chain forks.
func (s *Service) Append(ctx context.Context, chain string, content ContentHash) (ChainLink, error) {
	if content.IsZero() {
		return ChainLink{}, shared.E(shared.KindValidationFailed, "hashchain: content hash required")
	}
	var lease *cache.Lease
	if s.locker != nil {
		var err error
		lease, err = s.locker.Acquire(ctx, cache.ChainTailLockKey(chain))
		if err != nil {
			return ChainLink{}, err
		}
		defer lease.Release(ctx)
	}

	tail, err := s.repo.TailHash(ctx, chain)
	if err != nil {
		return ChainLink{}, err
	}
	if tail.IsZero() {
		tail = GenesisHash
	}
	link := NewChainLink(tail, content, s.clock.Now())
	if err := s.repo.AppendLink(ctx, chain, link); err != nil {
		return ChainLink{}, err
	}
	if s.metrics != nil {
		s.metrics.ChainAppended()
	}
	return link, nil
}

// VerifyAll walks the chain from genesis. A broken link is an integrity
// violation: fatal, surfaced with the offending sequence, never repaired.
func (s *Service) VerifyAll(ctx context.Context, chain string) error {
	links, err := s.repo.ListLinks(ctx, chain)
	if err != nil {
		return err
	}
	if idx := VerifyChain(links); idx >= 0 {
		if s.logger != nil {
			s.logger.Error("hash chain broken",
				slog.String("chain", chain),
				slog.Int("link_index", idx),
			)
		}
		if s.metrics != nil {
			s.metrics.IntegrityFailure()
		}
		return shared.Ef(shared.KindIntegrityViolation, "hashchain: chain %s broken at link %d", chain, idx)
	}
	return nil
}

// RecordProof seals the proof, persists it, and anchors its hash into the
// approvals chain so the decision itself is tamper-evident.
func (s *Service) RecordProof(ctx context.Context, chain string, proof Proof) (Proof, error) {
	if !proof.Sealed() {
		proof.ProofHash = proof.ComputeProofHash()
	}
	if err := s.repo.SaveProof(ctx, proof); err != nil {
		return Proof{}, err
	}
	if _, err := s.Append(ctx, chain, proof.ProofHash); err != nil {
		return Proof{}, err
	}
	return proof, nil
}

// VerifyProof checks that the approved entity is unchanged since approval.
func (s *Service) VerifyProof(ctx context.Context, entityType, entityID string, currentEntityHash ContentHash) error {
	proof, err := s.repo.FindProof(ctx, entityType, entityID)
	if err != nil {
		return err
	}
	if !proof.Sealed() {
		if s.metrics != nil {
			s.metrics.IntegrityFailure()
		}
		return shared.Ef(shared.KindIntegrityViolation, "hashchain: proof %s tampered", proof.ID)
	}
	if !proof.Verify(currentEntityHash) {
		if s.metrics != nil {
			s.metrics.IntegrityFailure()
		}
		return shared.Ef(shared.KindIntegrityViolation, "hashchain: entity %s/%s modified after approval", entityType, entityID)
	}
	return nil
}
