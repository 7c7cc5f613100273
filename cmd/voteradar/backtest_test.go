package voteradar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteradar/voteradar/internal/database"
)

type fakeLister struct {
	members []database.Member
	paused  []string
}

func (f *fakeLister) ListMembers(context.Context) ([]database.Member, error) {
	return f.members, nil
}

func (f *fakeLister) ListPausedRuns(context.Context) ([]string, error) {
	return f.paused, nil
}

func resetBacktestFlags() {
	backtestAll = false
	backtestResumeOnly = false
}

func TestSelectMembers_Args(t *testing.T) {
	t.Cleanup(resetBacktestFlags)

	ids, err := selectMembers(context.Background(), &fakeLister{}, []string{"mp-1", "mp-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mp-1", "mp-2"}, ids)
}

func TestSelectMembers_All(t *testing.T) {
	t.Cleanup(resetBacktestFlags)
	backtestAll = true

	lister := &fakeLister{members: []database.Member{{ID: "mp-1"}, {ID: "mp-2"}}}
	ids, err := selectMembers(context.Background(), lister, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"mp-1", "mp-2"}, ids)
}

func TestSelectMembers_ResumeOnly(t *testing.T) {
	t.Cleanup(resetBacktestFlags)
	backtestResumeOnly = true

	lister := &fakeLister{paused: []string{"mp-9"}}
	ids, err := selectMembers(context.Background(), lister, []string{"ignored"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mp-9"}, ids)
}

func TestSelectMembers_NothingSelected(t *testing.T) {
	t.Cleanup(resetBacktestFlags)

	_, err := selectMembers(context.Background(), &fakeLister{}, nil)
	assert.Error(t, err)
}
