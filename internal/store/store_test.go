package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/excrawl/excrawl/internal/domain"
)

func openTemp(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertAll(t *testing.T, s *Store, recs ...domain.ObjectRecord) {
	t.Helper()
	ctx := context.Background()
	b, err := s.Begin(ctx)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, b.Insert(ctx, r))
	}
	require.NoError(t, b.Commit())
}

var (
	recA = domain.ObjectRecord{Shot: "shotA", Name: "charA", ObjectName: "CharRig", ShotVersion: 3, ObjectVersion: 4, ObjectHighestVersion: 5, MediaFile: "/assets/charA.mb"}
	recB = domain.ObjectRecord{Shot: "shotA", Name: "propB", ObjectName: "PropRig", ShotVersion: 1, ObjectVersion: 2, ObjectHighestVersion: 2, MediaFile: "/assets/propB.mb"}
	recC = domain.ObjectRecord{Shot: "shotB", Name: "charA", ObjectName: "CharRig", ShotVersion: 1, ObjectVersion: 5, ObjectHighestVersion: 5, MediaFile: "/assets/charA.mb"}
)

func TestOpen_CreatesNestedFileAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "excrawler.db")
	s := openTemp(t, path)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.FileExists(t, path)
}

func TestOpen_ReusesExistingTableWithoutTruncating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excrawler.db")

	s1, err := Open(context.Background(), DriverSQLite, path, nil)
	require.NoError(t, err)
	insertAll(t, s1, recA, recB)
	require.NoError(t, s1.Close())

	s2 := openTemp(t, path)
	n, err := s2.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

// 库不去重：同样的输入写两次，行数翻倍。
func TestInsert_NotDeduplicated(t *testing.T) {
	s := openTemp(t, filepath.Join(t.TempDir(), "excrawler.db"))

	insertAll(t, s, recA, recB, recC)
	insertAll(t, s, recA, recB, recC)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, n)
}

func TestBatch_RollbackLeavesNoRows(t *testing.T) {
	s := openTemp(t, filepath.Join(t.TempDir(), "excrawler.db"))
	ctx := context.Background()

	b, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Insert(ctx, recA))
	require.NoError(t, b.Rollback())
	// 重复 Rollback 安全。
	require.NoError(t, b.Rollback())

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestShotStats(t *testing.T) {
	s := openTemp(t, filepath.Join(t.TempDir(), "excrawler.db"))
	insertAll(t, s, recC, recA, recB)

	got, err := s.ShotStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.ShotStat{
		{Shot: "shotA", Objects: 2, OutOfDate: 1},
		{Shot: "shotB", Objects: 1, OutOfDate: 0},
	}, got)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownDriver))
}

func TestRebind(t *testing.T) {
	require.Equal(t, "VALUES ($1, $2)", rebind(DriverPostgres, "VALUES (?, ?)"))
	require.Equal(t, "VALUES (?, ?)", rebind(DriverMySQL, "VALUES (?, ?)"))
}

func TestRedactDSN(t *testing.T) {
	require.Equal(t, "***@tcp(db:3306)/crawl", redactDSN(DriverMySQL, "user:secret@tcp(db:3306)/crawl"))
	require.Equal(t, "/tmp/x.db", redactDSN(DriverSQLite, "/tmp/x.db"))
}
