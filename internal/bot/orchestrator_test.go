package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashureev/diffbot/internal/domain"
	"github.com/ashureev/diffbot/internal/session"
	"github.com/ashureev/diffbot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeRepo struct {
	mu        sync.Mutex
	records   []domain.Record
	insertErr error
	listErr   error
	deleteErr error
	nextID    int64
}

func (f *fakeRepo) Insert(_ context.Context, rec domain.Record) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	rec.ID = f.nextID
	f.records = append(f.records, rec)
	return rec.ID, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID int64) ([]domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Record, 0)
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	kept := f.records[:0]
	var n int64
	for _, r := range f.records {
		if r.UserID == userID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return n, nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }
func (f *fakeRepo) Close() error                 { return nil }

var errDiskGone = fmt.Errorf("insert record: %w: disk I/O error", store.ErrStorage)

// OrchestratorSuite runs dialogues end to end against a real SQLite store.
type OrchestratorSuite struct {
	suite.Suite
	repo     *store.SQLiteStore
	sessions *session.Registry
	orch     *Orchestrator
	ctx      context.Context
}

func (s *OrchestratorSuite) SetupTest() {
	repo, err := store.NewSQLite(filepath.Join(s.T().TempDir(), "bot.db"))
	s.Require().NoError(err)
	s.repo = repo
	s.sessions = session.NewRegistry()
	s.orch, err = New(repo, s.sessions)
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *OrchestratorSuite) TearDownTest() {
	s.NoError(s.repo.Close())
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) TestLunchExample() {
	r := s.orch.HandleMenuAction(s.ctx, 1, domain.ActionStartAdd)
	s.Equal("Enter the first number:", r.Last().Text)
	s.Equal(domain.KeyboardCancel, r.Last().Keyboard)

	r = s.orch.HandleText(s.ctx, 1, "10")
	s.Equal("10\n\nEnter the second number:", r.Last().Text)

	r = s.orch.HandleText(s.ctx, 1, "4,5")
	s.Equal("10 - 4.5 = 5.5\n\nEnter a description:", r.Last().Text)

	r = s.orch.HandleText(s.ctx, 1, "lunch")
	s.Require().Len(r.Messages, 2)
	s.Equal("Calculation saved.", r.Messages[0].Text)
	s.Equal(domain.KeyboardMenu, r.Messages[1].Keyboard)
	s.Equal(domain.StateIdle, s.sessions.Get(1).State)

	records, err := s.repo.ListByUser(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(10.0, records[0].Operand1)
	s.Equal(4.5, records[0].Operand2)
	s.Equal(5.5, records[0].Result)
	s.Equal("lunch", records[0].Description)

	r = s.orch.HandleMenuAction(s.ctx, 1, domain.ActionShowHistory)
	s.Require().Len(r.Messages, 1)
	s.Contains(r.Last().Text, "5.5")
	s.Contains(r.Last().Text, "lunch")
	s.Equal(domain.KeyboardCancel, r.Last().Keyboard)
}

func (s *OrchestratorSuite) TestEmptyHistory() {
	r := s.orch.HandleMenuAction(s.ctx, 2, domain.ActionShowHistory)
	s.Equal("You have no calculation history.", r.Last().Text)
}

func (s *OrchestratorSuite) TestInvalidNumberRetries() {
	s.orch.HandleMenuAction(s.ctx, 3, domain.ActionStartAdd)

	r := s.orch.HandleText(s.ctx, 3, "abc")
	s.Contains(r.Last().Text, "Invalid number, please try again.")
	s.Contains(r.Last().Text, "invalid syntax")
	s.Equal(domain.StateAwaitingOperand1, s.sessions.Get(3).State)

	s.orch.HandleText(s.ctx, 3, "7")
	r = s.orch.HandleText(s.ctx, 3, "seven")
	s.Contains(r.Last().Text, "invalid syntax")
	s.Equal(domain.StateAwaitingOperand2, s.sessions.Get(3).State)

	records, err := s.repo.ListByUser(s.ctx, 3)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *OrchestratorSuite) TestCancelDiscardsDialogue() {
	steps := []string{"1", "2"}
	for i := 0; i <= len(steps); i++ {
		s.orch.HandleMenuAction(s.ctx, 4, domain.ActionStartAdd)
		for _, text := range steps[:i] {
			s.orch.HandleText(s.ctx, 4, text)
		}

		r := s.orch.HandleMenuAction(s.ctx, 4, domain.ActionCancel)
		s.Equal("Bot for calculating the difference between two numbers.", r.Last().Text)
		s.Equal(domain.KeyboardMenu, r.Last().Keyboard)
		s.Equal(domain.StateIdle, s.sessions.Get(4).State)
	}

	records, err := s.repo.ListByUser(s.ctx, 4)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *OrchestratorSuite) TestTextWhileIdleShowsMenu() {
	r := s.orch.HandleText(s.ctx, 5, "/start")
	s.Require().Len(r.Messages, 1)
	s.Equal(domain.KeyboardMenu, r.Last().Keyboard)

	records, err := s.repo.ListByUser(s.ctx, 5)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *OrchestratorSuite) TestClearHistory() {
	for _, u := range []int64{6, 7} {
		s.orch.HandleMenuAction(s.ctx, u, domain.ActionStartAdd)
		s.orch.HandleText(s.ctx, u, "3")
		s.orch.HandleText(s.ctx, u, "1")
		s.orch.HandleText(s.ctx, u, "x")
	}

	r := s.orch.HandleMenuAction(s.ctx, 6, domain.ActionClearHistory)
	s.Equal("Your results have been cleared.", r.Last().Text)

	r = s.orch.HandleMenuAction(s.ctx, 6, domain.ActionShowHistory)
	s.Equal("You have no calculation history.", r.Last().Text)

	r = s.orch.HandleMenuAction(s.ctx, 7, domain.ActionShowHistory)
	s.Contains(r.Last().Text, "1. 2\nx")

	// Clearing an empty history still confirms.
	r = s.orch.HandleMenuAction(s.ctx, 6, domain.ActionClearHistory)
	s.Equal("Your results have been cleared.", r.Last().Text)
}

func (s *OrchestratorSuite) TestConcurrentUsers() {
	var wg sync.WaitGroup
	for u := int64(100); u < 110; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			s.orch.HandleMenuAction(s.ctx, userID, domain.ActionStartAdd)
			s.orch.HandleText(s.ctx, userID, fmt.Sprint(userID))
			s.orch.HandleText(s.ctx, userID, "1")
			s.orch.HandleText(s.ctx, userID, fmt.Sprint("user ", userID))
		}(u)
	}
	wg.Wait()

	for u := int64(100); u < 110; u++ {
		records, err := s.repo.ListByUser(s.ctx, u)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(float64(u-1), records[0].Result)
		s.Equal(fmt.Sprint("user ", u), records[0].Description)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(nil, session.NewRegistry())
	assert.Error(t, err)
	_, err = New(&fakeRepo{}, nil)
	assert.Error(t, err)
}

func TestSaveFailureKeepsDialogue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepo{insertErr: errDiskGone}
	sessions := session.NewRegistry()
	o, err := New(repo, sessions)
	require.NoError(t, err)

	o.HandleMenuAction(ctx, 1, domain.ActionStartAdd)
	o.HandleText(ctx, 1, "10")
	o.HandleText(ctx, 1, "4")

	r := o.HandleText(ctx, 1, "groceries")
	require.Len(t, r.Messages, 1)
	assert.Equal(t, "Could not save the calculation. Send the description again to retry.", r.Last().Text)
	assert.NotContains(t, r.Last().Text, "saved.")
	assert.Equal(t, domain.StateAwaitingDescription, sessions.Get(1).State)

	// The store recovers; resending the description commits without re-entering numbers.
	repo.mu.Lock()
	repo.insertErr = nil
	repo.mu.Unlock()

	r = o.HandleText(ctx, 1, "groceries")
	assert.Equal(t, "Calculation saved.", r.Messages[0].Text)
	assert.Equal(t, domain.StateIdle, sessions.Get(1).State)

	records, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 6.0, records[0].Result)
}

func TestHistoryAndClearFailuresAreReported(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepo{
		listErr:   errors.New("boom"),
		deleteErr: errors.New("boom"),
	}
	o, err := New(repo, session.NewRegistry())
	require.NoError(t, err)

	r := o.HandleMenuAction(ctx, 1, domain.ActionShowHistory)
	assert.Equal(t, "Could not load your history. Please try again later.", r.Last().Text)

	r = o.HandleMenuAction(ctx, 1, domain.ActionClearHistory)
	assert.Equal(t, "Could not clear your history. Please try again later.", r.Last().Text)
}

func TestUnknownActionShowsMenu(t *testing.T) {
	t.Parallel()

	o, err := New(&fakeRepo{}, session.NewRegistry())
	require.NoError(t, err)

	r := o.HandleMenuAction(context.Background(), 1, domain.Action(99))
	assert.Equal(t, domain.KeyboardMenu, r.Last().Keyboard)
}
