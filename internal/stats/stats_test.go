package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(":memory:")
	require.NoError(t, err)
	return repo
}

func TestRepository_EmptySummary(t *testing.T) {
	repo := openTestRepo(t)
	s, err := repo.Summarize()
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.WizardRuns)
	assert.Equal(t, int64(0), s.Downloads)
	assert.Equal(t, int64(0), s.BytesDelivered)
}

func TestRepository_RecordAndSummarize(t *testing.T) {
	repo := openTestRepo(t)

	require.NoError(t, repo.RecordWizardRun(1, "gotd", "completed"))
	require.NoError(t, repo.RecordWizardRun(1, "proto", "timeout"))
	require.NoError(t, repo.RecordWizardRun(2, "gotd", "completed"))

	require.NoError(t, repo.RecordDownload(1, "video", "completed", 2048))
	require.NoError(t, repo.RecordDownload(1, "audio", "too_large", 0))
	require.NoError(t, repo.RecordDownload(3, "audio", "completed", 1024))

	s, err := repo.Summarize()
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.WizardRuns)
	assert.Equal(t, int64(2), s.WizardCompleted)
	assert.Equal(t, int64(3), s.Downloads)
	assert.Equal(t, int64(2), s.DownloadsOK)
	assert.Equal(t, int64(3072), s.BytesDelivered)
}
