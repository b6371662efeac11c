package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newstweet/internal/metrics"
	"github.com/deusflow/newstweet/internal/storage"
)

type fakeSource struct {
	headlines []string
	err       error
}

func (f *fakeSource) Headlines(ctx context.Context) ([]string, error) {
	return f.headlines, f.err
}

func (f *fakeSource) Name() string { return "fake" }

type fakePoster struct {
	posted []string
	err    error
}

func (f *fakePoster) PostText(ctx context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.posted = append(f.posted, text)
	return fmt.Sprintf("id-%d", len(f.posted)), nil
}

type fakeRemote struct {
	data       []byte
	exists     bool
	generation int64
	uploads    int
	uploadErr  error
}

func (f *fakeRemote) Download(ctx context.Context, dst io.Writer) (int64, error) {
	if !f.exists {
		return 0, storage.ErrRemoteNotFound
	}
	_, err := dst.Write(f.data)
	return f.generation, err
}

func (f *fakeRemote) Upload(ctx context.Context, src io.Reader, cond storage.Precondition) (int64, error) {
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return 0, err
	}
	f.data = data
	f.exists = true
	f.generation++
	f.uploads++
	return f.generation, nil
}

func remoteHistory(entries ...string) *fakeRemote {
	var b bytes.Buffer
	b.WriteString("tweet\n")
	for _, e := range entries {
		b.WriteString(e + "\n")
	}
	return &fakeRemote{data: b.Bytes(), exists: true, generation: 1}
}

type fixture struct {
	source  *fakeSource
	poster  *fakePoster
	remote  *fakeRemote
	history *storage.History
	app     *App
}

func newFixture(t *testing.T, headlines []string, remote *fakeRemote, opts Options) *fixture {
	t.Helper()
	if opts.DedupWindow == 0 {
		opts.DedupWindow = 10
	}
	f := &fixture{
		source: &fakeSource{headlines: headlines},
		poster: &fakePoster{},
		remote: remote,
	}
	f.history = storage.NewHistory(filepath.Join(t.TempDir(), "tweet_history.csv"), "tweet", remote)
	f.app = New(f.source, f.history, f.poster, opts, &metrics.Metrics{IsHealthy: true})
	return f
}

func TestRun_FirstNovelHeadlinePosted(t *testing.T) {
	f := newFixture(t, []string{"Novel one", "Novel two", "Novel three"}, remoteHistory("Old"), Options{})

	res, err := f.app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomePosted, res.Outcome)
	assert.Equal(t, "Novel one", res.Headline)
	assert.Equal(t, "id-1", res.PostID)
	assert.Equal(t, []string{"Novel one"}, f.poster.posted)
	assert.Equal(t, 1, f.remote.uploads)
	assert.Equal(t, []string{"Old", "Novel one"}, f.history.Entries())
	assert.Equal(t, "tweet\nOld\nNovel one\n", string(f.remote.data))
}

func TestRun_SkipsRecentlyPosted(t *testing.T) {
	f := newFixture(t, []string{"Seen", "Fresh", "Also fresh"}, remoteHistory("Seen"), Options{})

	res, err := f.app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomePosted, res.Outcome)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"Fresh"}, f.poster.posted)
	assert.Equal(t, []string{"Seen", "Fresh"}, f.history.Entries())
}

func TestRun_AllSeen(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, remoteHistory("B", "A"), Options{})

	res, err := f.app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeAllSeen, res.Outcome)
	assert.Empty(t, f.poster.posted)
	assert.Zero(t, f.remote.uploads)
	assert.Equal(t, []string{"B", "A"}, f.history.Entries())
}

func TestRun_OutsideWindowIsNovel(t *testing.T) {
	entries := []string{"Repeat"}
	for i := 0; i < 10; i++ {
		entries = append(entries, fmt.Sprintf("filler %d", i))
	}
	f := newFixture(t, []string{"Repeat"}, remoteHistory(entries...), Options{})

	res, err := f.app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, res.Outcome)
	assert.Equal(t, []string{"Repeat"}, f.poster.posted)
}

func TestRun_NoHeadlines(t *testing.T) {
	f := newFixture(t, nil, remoteHistory("Old"), Options{})

	res, err := f.app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoHeadlines, res.Outcome)
	assert.Empty(t, f.poster.posted)
	assert.Zero(t, f.remote.uploads)
}

func TestRun_FetchFailure(t *testing.T) {
	f := newFixture(t, nil, remoteHistory("Old"), Options{})
	f.source.err = errors.New("status 500")

	res, err := f.app.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, OutcomeNone, res.Outcome)
	assert.Empty(t, f.poster.posted)
	assert.Zero(t, f.remote.uploads)
}

func TestRun_PostFailureDoesNotRecord(t *testing.T) {
	f := newFixture(t, []string{"Fresh"}, remoteHistory("Old"), Options{})
	f.poster.err = errors.New("forbidden")

	res, err := f.app.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, OutcomeNone, res.Outcome)
	assert.Zero(t, f.remote.uploads)
	assert.Equal(t, []string{"Old"}, f.history.Entries())
}

func TestRun_RecordFailureAfterPost(t *testing.T) {
	remote := remoteHistory("Old")
	remote.uploadErr = storage.ErrConflict
	f := newFixture(t, []string{"Fresh"}, remote, Options{})

	res, err := f.app.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrConflict))

	assert.Equal(t, OutcomePosted, res.Outcome)
	assert.Equal(t, "Fresh", res.Headline)
	assert.Equal(t, []string{"Fresh"}, f.poster.posted)
}

func TestRun_MissingHistoryWithoutBootstrap(t *testing.T) {
	f := newFixture(t, []string{"Fresh"}, &fakeRemote{}, Options{})

	_, err := f.app.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrHistoryFileMissing))
	assert.Empty(t, f.poster.posted)
}

func TestRun_BootstrapsMissingHistory(t *testing.T) {
	f := newFixture(t, []string{"First ever"}, &fakeRemote{}, Options{BootstrapHistory: true})

	res, err := f.app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomePosted, res.Outcome)
	assert.Equal(t, "tweet\nFirst ever\n", string(f.remote.data))
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t, []string{"Fresh"}, remoteHistory("Old"), Options{DryRun: true})

	res, err := f.app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeDryRun, res.Outcome)
	assert.Equal(t, "Fresh", res.Headline)
	assert.Empty(t, f.poster.posted)
	assert.Zero(t, f.remote.uploads)
}

func TestRun_BlankHeadlinesIgnored(t *testing.T) {
	f := newFixture(t, []string{"", "  ", "Real"}, remoteHistory("Old"), Options{})

	res, err := f.app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Real"}, f.poster.posted)
	assert.Equal(t, "Real", res.Headline)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "posted", OutcomePosted.String())
	assert.Equal(t, "none", Outcome(99).String())
}
