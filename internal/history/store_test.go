// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snapshotOf(t *testing.T, doc settings.Document, epoch uint64) *settings.Snapshot {
	t.Helper()
	rev, err := settings.Hash(doc)
	require.NoError(t, err)
	return &settings.Snapshot{
		Document: doc,
		Revision: rev,
		Epoch:    epoch,
		Source:   "/etc/dpmon/settings.yaml",
		LoadedAt: time.UnixMilli(1700000000123).UTC(),
	}
}

func TestStore_RecordAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := snapshotOf(t, settings.Default(), 1)
	wrote, err := s.Record(ctx, first)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = s.Record(ctx, first)
	require.NoError(t, err)
	assert.False(t, wrote, "identical consecutive revision is skipped")

	doc := settings.Default()
	doc.TimezoneOffset = -500
	second := snapshotOf(t, doc, 2)
	wrote, err = s.Record(ctx, second)
	require.NoError(t, err)
	assert.True(t, wrote)

	// going back to the first document is a new revision
	wrote, err = s.Record(ctx, snapshotOf(t, settings.Default(), 3))
	require.NoError(t, err)
	assert.True(t, wrote)

	revs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	assert.Equal(t, uint64(3), revs[0].Epoch)
	assert.Equal(t, second.Revision, revs[1].Hash)
	assert.Equal(t, first.LoadedAt, revs[2].AppliedAt)
	if diff := cmp.Diff(doc, revs[1].Document); diff != "" {
		t.Errorf("stored document mismatch (-want +got):\n%s", diff)
	}

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, revs[0].ID, limited[0].ID)
}

func TestStore_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), snapshotOf(t, settings.Default(), 1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	revs, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, revs, 1)

	issues, err := s.Verify(false)
	require.NoError(t, err)
	assert.Nil(t, issues)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestStore_AsHolderPublisher(t *testing.T) {
	s := openStore(t)

	h, err := settings.NewHolder(settings.Default(), "")
	require.NoError(t, err)
	h.AddPublisher(s.Publisher())
	require.NoError(t, h.Publish(context.Background()))
	require.NoError(t, h.Publish(context.Background()))

	revs, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, h.Current().Revision, revs[0].Hash)
	assert.Equal(t, settings.SourceDefault, revs[0].Source)
}
