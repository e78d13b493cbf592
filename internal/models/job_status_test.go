package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCanceled} {
		require.True(t, s.IsTerminal(), "status %s", s)
	}
	for _, s := range []JobStatus{JobStatusQueued, JobStatusInitializing, JobStatusValidating, JobStatusDownloading, JobStatusProcessing} {
		require.False(t, s.IsTerminal(), "status %s", s)
	}
}

func TestValidTransitionForwardPath(t *testing.T) {
	path := []JobStatus{
		JobStatusQueued,
		JobStatusInitializing,
		JobStatusValidating,
		JobStatusDownloading,
		JobStatusProcessing,
		JobStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		require.True(t, ValidTransition(path[i], path[i+1]),
			"%s -> %s should be allowed", path[i], path[i+1])
	}
}

func TestValidTransitionRejectsBackwards(t *testing.T) {
	require.False(t, ValidTransition(JobStatusProcessing, JobStatusDownloading))
	require.False(t, ValidTransition(JobStatusDownloading, JobStatusValidating))
	require.False(t, ValidTransition(JobStatusValidating, JobStatusQueued))
}

func TestValidTransitionTerminalIsFinal(t *testing.T) {
	for _, from := range []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCanceled} {
		for _, to := range []JobStatus{JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCanceled} {
			if from == to {
				continue
			}
			require.False(t, ValidTransition(from, to), "%s -> %s must be rejected", from, to)
		}
	}
}

func TestValidTransitionCancelAndFailFromAnyLiveState(t *testing.T) {
	for _, from := range []JobStatus{JobStatusQueued, JobStatusInitializing, JobStatusValidating, JobStatusDownloading, JobStatusProcessing} {
		require.True(t, ValidTransition(from, JobStatusCanceled))
		require.True(t, ValidTransition(from, JobStatusFailed))
	}
}

func TestValidTransitionSkipsDownloading(t *testing.T) {
	// Transcripts resolved without any artifact download go straight to
	// processing.
	require.True(t, ValidTransition(JobStatusValidating, JobStatusProcessing))
	require.True(t, ValidTransition(JobStatusDownloading, JobStatusCompleted))
}
