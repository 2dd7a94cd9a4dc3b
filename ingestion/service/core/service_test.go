package service

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cchain/chain"
	"cchain/internal/models"
	"cchain/storage/store"
)

// capturingProducer records published messages instead of sending them.
type capturingProducer struct {
	published []*models.CommitMessage
	fail      error
}

func (p *capturingProducer) Publish(ctx context.Context, msg *models.CommitMessage) error {
	if p.fail != nil {
		return p.fail
	}
	p.published = append(p.published, msg)
	return nil
}

func (p *capturingProducer) Close() error { return nil }

func newTestService(t *testing.T) (*Service, *capturingProducer, *store.MemoryStore) {
	t.Helper()
	seq := store.NewMemoryStore()
	c := chain.New(seq)
	p := &capturingProducer{}
	logger := log.New(io.Discard, "", 0)
	return NewService(c, p, logger), p, seq
}

func TestSubmitCommitAppendsAndPublishes(t *testing.T) {
	svc, p, seq := newTestService(t)
	ctx := context.Background()

	result, err := svc.SubmitCommit(ctx, &CommitInput{Type: "manual_commit", Message: "hello", User: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RequestID)
	assert.NotEmpty(t, result.Hash)
	assert.Equal(t, chain.SentinelPrev, result.Prev)
	assert.Equal(t, "alice", result.User)

	records, err := seq.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.Hash, records[0].Hash)

	require.Len(t, p.published, 1)
	msg := p.published[0]
	assert.Equal(t, result.RequestID, msg.RequestID)
	assert.Equal(t, result.Hash, msg.Hash)
	assert.Equal(t, records[0].Timestamp, msg.Timestamp)
}

func TestSubmitCommitRequiresType(t *testing.T) {
	svc, p, _ := newTestService(t)

	_, err := svc.SubmitCommit(context.Background(), &CommitInput{Message: "no type"})
	require.Error(t, err)
	assert.Empty(t, p.published)
}

func TestSubmitCommitDefaultsToAnonymous(t *testing.T) {
	svc, p, _ := newTestService(t)

	result, err := svc.SubmitCommit(context.Background(), &CommitInput{Type: "t"})
	require.NoError(t, err)
	assert.Equal(t, chain.AnonymousUser, result.User)
	require.Len(t, p.published, 1)
	assert.Equal(t, chain.AnonymousUser, p.published[0].User)
}

func TestSubmitCommitSurvivesPublishFailure(t *testing.T) {
	svc, p, seq := newTestService(t)
	p.fail = assert.AnError

	result, err := svc.SubmitCommit(context.Background(), &CommitInput{Type: "t", User: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Hash)

	// The record is durable even though the event publish failed.
	records, err := seq.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestVerifyAndStatsPassthrough(t *testing.T) {
	svc, _, seq := newTestService(t)
	ctx := context.Background()

	for _, msg := range []string{"a", "b", "c"} {
		_, err := svc.SubmitCommit(ctx, &CommitInput{Type: "manual_commit", Message: msg, User: "alice"})
		require.NoError(t, err)
	}

	result, err := svc.VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	stats, err := svc.ChainStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.CountByUser["alice"])

	seq.Tamper(1, func(r *chain.CommitRecord) { r.Message = "tampered" })

	result, err = svc.VerifyChain(ctx)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, 1, result.Index)

	breaks, err := svc.VerifyChainAll(ctx)
	require.NoError(t, err)
	assert.Len(t, breaks, 1)
}
