package hashchain

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/platform/cache"
	"github.com/meridian-books/meridian/internal/shared"
)

type stubChainRepo struct {
	links  map[string][]ChainLink
	proofs map[string]Proof
}

func newStubChainRepo() *stubChainRepo {
	return &stubChainRepo{links: make(map[string][]ChainLink), proofs: make(map[string]Proof)}
}

func (s *stubChainRepo) AppendLink(_ context.Context, chain string, link ChainLink) error {
	link.Sequence = int64(len(s.links[chain]) + 1)
	s.links[chain] = append(s.links[chain], link)
	return nil
}

func (s *stubChainRepo) TailHash(_ context.Context, chain string) (ContentHash, error) {
	entries := s.links[chain]
	if len(entries) == 0 {
		return ContentHash{}, nil
	}
	return entries[len(entries)-1].ComputeHash(), nil
}

func (s *stubChainRepo) ListLinks(_ context.Context, chain string) ([]ChainLink, error) {
	return append([]ChainLink(nil), s.links[chain]...), nil
}

func (s *stubChainRepo) SaveProof(_ context.Context, proof Proof) error {
	s.proofs[proof.EntityType+"/"+proof.EntityID] = proof
	return nil
}

func (s *stubChainRepo) FindProof(_ context.Context, entityType, entityID string) (Proof, error) {
	proof, ok := s.proofs[entityType+"/"+entityID]
	if !ok {
		return Proof{}, shared.Ef(shared.KindNotFound, "hashchain: no proof for %s/%s", entityType, entityID)
	}
	return proof, nil
}

func newTestService(t *testing.T) (*Service, *stubChainRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newStubChainRepo()
	svc := NewService(repo, cache.NewLocker(client, time.Minute), shared.SystemClock{}, slog.Default())
	return svc, repo
}

func TestServiceAppendLinksTail(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.Append(ctx, "audit", FromString(fmt.Sprintf("event-%d", i)))
		require.NoError(t, err)
	}

	links := repo.links["audit"]
	require.Len(t, links, 4)
	assert.True(t, links[0].PreviousHash.Equal(GenesisHash))
	assert.Equal(t, -1, VerifyChain(links))
	require.NoError(t, svc.VerifyAll(ctx, "audit"))
}

func TestServiceAppendRejectsEmptyContent(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Append(context.Background(), "audit", ContentHash{})
	require.Error(t, err)
	assert.Equal(t, shared.KindValidationFailed, shared.KindOf(err))
}

func TestServiceVerifyAllReportsBrokenLink(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Append(ctx, "audit", FromString(fmt.Sprintf("event-%d", i)))
		require.NoError(t, err)
	}

	repo.links["audit"][1].ContentHash = FromString("rewritten")
	err := svc.VerifyAll(ctx, "audit")
	require.Error(t, err)
	assert.Equal(t, shared.KindIntegrityViolation, shared.KindOf(err))
}

func TestServiceRecordAndVerifyProof(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	entityHash := FromString("approved transaction state")
	proof := NewProof("transaction", "tx-1", "HIGH_VALUE", uuid.New(), entityHash, time.Now(), "ok")
	_, err := svc.RecordProof(ctx, "approvals", proof)
	require.NoError(t, err)
	require.Len(t, repo.links["approvals"], 1, "proof hash must be anchored into the chain")

	require.NoError(t, svc.VerifyProof(ctx, "transaction", "tx-1", entityHash))

	err = svc.VerifyProof(ctx, "transaction", "tx-1", FromString("edited after approval"))
	require.Error(t, err)
	assert.Equal(t, shared.KindIntegrityViolation, shared.KindOf(err))

	err = svc.VerifyProof(ctx, "transaction", "missing", entityHash)
	require.Error(t, err)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

type countingChainMetrics struct {
	appends  int
	failures int
}

func (m *countingChainMetrics) ChainAppended()    { m.appends++ }
func (m *countingChainMetrics) IntegrityFailure() { m.failures++ }

func TestServiceCountsAppendsAndIntegrityFailures(t *testing.T) {
	svc, repo := newTestService(t)
	metrics := &countingChainMetrics{}
	svc.WithMetrics(metrics)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Append(ctx, "audit", FromString(fmt.Sprintf("event-%d", i)))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, metrics.appends)
	assert.Zero(t, metrics.failures)

	require.NoError(t, svc.VerifyAll(ctx, "audit"))
	assert.Zero(t, metrics.failures, "an intact chain reports nothing")

	repo.links["audit"][0].ContentHash = FromString("rewritten")
	err := svc.VerifyAll(ctx, "audit")
	require.Error(t, err)
	assert.Equal(t, 1, metrics.failures)
}
