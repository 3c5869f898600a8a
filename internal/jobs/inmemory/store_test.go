package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/jobs"
)

func TestStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.IngestDocumentJob{JobID: "a", DocumentID: 1, Status: jobs.JobStatusPending}
	require.NoError(t, s.SaveJob(ctx, job))

	job.Status = jobs.JobStatusRunning
	got, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status)

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = s.SaveJob(ctx, &jobs.IngestDocumentJob{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStoreListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []*jobs.IngestDocumentJob{
		{JobID: "a", DocumentID: 1, Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", DocumentID: 2, Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "c", DocumentID: 1, Status: jobs.JobStatusFailed, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, j := range seed {
		require.NoError(t, s.SaveJob(ctx, j))
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by document", jobs.JobFilter{DocumentID: 1}, []string{"c", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusFailed}, []string{"c", "b"}},
		{"limit", jobs.JobFilter{Limit: 1}, []string{"c"}},
		{"offset", jobs.JobFilter{Offset: 1}, []string{"b", "a"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
