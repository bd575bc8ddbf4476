package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const rosterCSV = `Name,Email,Branch,Role Title
Alice Smith,alice@x.com,Software,Chief of Software
Bob Jones,,Software,Member
Cher,,Hardware,Tech Lead
,,Data,Member
`

func TestParseCSV(t *testing.T) {
	entries, err := ParseCSV(strings.NewReader(rosterCSV), "generatenu.com")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "alice@x.com", entries[0].Email)
	assert.Equal(t, "Chief of Software", entries[0].Role)
	assert.Equal(t, "bob.jones@generatenu.com", entries[1].Email)
	assert.Equal(t, "cher@generatenu.com", entries[2].Email)
	assert.Equal(t, "Hardware", entries[2].Branch)
}

func TestParseCSV_RoleHeaderFallback(t *testing.T) {
	in := "NAME,Email Address,BRANCH,Role\nDana,dana@x.com,Finance,Director\n"
	entries, err := ParseCSV(strings.NewReader(in), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dana@x.com", entries[0].Email)
	assert.Equal(t, "Director", entries[0].Role)
}

func TestParseCSV_MissingName(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Email,Branch\na@x.com,Data\n"), "")
	assert.Error(t, err)
}

func TestFileSource_Formats(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "roster.json")
	yamlPath := filepath.Join(dir, "roster.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"email":"a@x.com","name":"A","branch":"Data","role":"Lead"}]`), 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte("- email: b@x.com\n  name: B\n  branch: Data\n  role: Chief\n"), 0o600))

	got, err := FileSource{Path: jsonPath}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Email: "a@x.com", Name: "A", Branch: "Data", Role: "Lead"}}, got)

	got, err = FileSource{Path: yamlPath}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Email: "b@x.com", Name: "B", Branch: "Data", Role: "Chief"}}, got)

	_, err = FileSource{Path: filepath.Join(dir, "roster.txt")}.Load(context.Background())
	assert.Error(t, err)
}

func setupTestRedis(t *testing.T) *RedisSource {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSource(client, "")
}

func TestRedisSource_PublishAndLoad(t *testing.T) {
	src := setupTestRedis(t)
	ctx := context.Background()

	_, err := src.Load(ctx)
	assert.Error(t, err, "nothing published yet")

	want := []Entry{{Email: "a@x.com", Name: "A", Branch: "Software", Role: "Lead"}}
	require.NoError(t, src.Publish(ctx, want))

	got, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRedisSource_Errors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	src := NewRedisSource(client, "roster:test")
	ctx := context.Background()

	mock.ExpectGet("roster:test").SetErr(errors.New("connection refused"))
	_, err := src.Load(ctx)
	assert.ErrorContains(t, err, "connection refused")

	mock.ExpectGet("roster:test").SetVal("{not json")
	_, err = src.Load(ctx)
	assert.ErrorContains(t, err, "unmarshal")

	mock.ExpectSet("roster:test", []byte(`[{"email":"a@x.com","name":"","branch":"","role":"","level":""}]`), 0).
		SetErr(errors.New("READONLY"))
	err = src.Publish(ctx, []Entry{{Email: "a@x.com"}})
	assert.ErrorContains(t, err, "READONLY")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialRedis(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := DialRedis(context.Background(), "redis://"+s.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = DialRedis(context.Background(), "not a url")
	assert.Error(t, err)
}

type stubSource struct {
	entries []Entry
	err     error
}

func (s *stubSource) Load(context.Context) ([]Entry, error) { return s.entries, s.err }

type countingSource struct {
	entries []Entry
	loads   atomic.Int32
}

func (s *countingSource) Load(context.Context) ([]Entry, error) {
	s.loads.Add(1)
	return s.entries, nil
}

func TestRefresher_KeepsPreviousSnapshotOnFailure(t *testing.T) {
	d := NewDirectory(DefaultHierarchy())
	src := &stubSource{entries: []Entry{{Email: "a@x.com"}}}
	r := NewRefresher(d, src, 0, zap.NewNop())

	replaced := 0
	r.OnReplace = func(n int) { replaced = n }

	n, err := r.RefreshOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, replaced)

	src.entries, src.err = nil, errors.New("sheet unavailable")
	_, err = r.RefreshOnce(context.Background())
	assert.Error(t, err)
	_, ok := d.Lookup("a@x.com")
	assert.True(t, ok)

	src.err = nil
	_, err = r.RefreshOnce(context.Background())
	assert.ErrorIs(t, err, ErrEmptyRoster)
	assert.Equal(t, 1, d.Len())
}

func TestRefresher_RunStopsOnCancel(t *testing.T) {
	d := NewDirectory(DefaultHierarchy())
	r := NewRefresher(d, &stubSource{entries: []Entry{{Email: "a@x.com"}}}, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	assert.NoError(t, <-done)
	assert.Equal(t, 0, d.Len())
}

func TestRefresher_RunWaitsForFirstTick(t *testing.T) {
	d := NewDirectory(DefaultHierarchy())
	src := &countingSource{entries: []Entry{{Email: "a@x.com"}}}
	r := NewRefresher(d, src, 200*time.Millisecond, zap.NewNop())

	_, err := r.RefreshOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), src.loads.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Run must not reload right away after the startup load.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), src.loads.Load())

	require.Eventually(t, func() bool { return src.loads.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
