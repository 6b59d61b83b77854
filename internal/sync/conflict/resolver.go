// Package conflict provides last-write-wins resolution for concurrent edits.
package conflict

import (
	"encoding/json"
	"time"

	"github.com/taskdock/taskdock/internal/models"
)

// Resolution labels which side of a conflict won.
const (
	ResolutionLocalWins  = "local_wins"
	ResolutionRemoteWins = "remote_wins"
)

// Resolve picks a winner between a local and a remote version of the same
// task. It is a pure function of the two UpdatedAt values: a strictly
// later remote timestamp wins; ties, zero, or otherwise unusable remote
// timestamps keep the local version, so local work is never discarded
// silently. A nil side forfeits.
func Resolve(local, remote *models.Task) *models.Task {
	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}
	if remote.UpdatedAt > local.UpdatedAt {
		return remote
	}
	return local
}

// Winner reports which side Resolve picked, as a resolution label.
func Winner(local, remote *models.Task) string {
	if Resolve(local, remote) == remote && local != remote {
		return ResolutionRemoteWins
	}
	return ResolutionLocalWins
}

// BuildLog assembles the archive entry for a resolved conflict, embedding
// a snapshot of the losing version.
func BuildLog(local, remote, winner *models.Task) *models.ConflictLog {
	loser := local
	resolution := ResolutionRemoteWins
	if winner == local {
		loser = remote
		resolution = ResolutionLocalWins
	}

	log := &models.ConflictLog{
		TaskID:     winner.ID,
		Resolution: resolution,
		DetectedAt: time.Now().Unix(),
	}
	if local != nil {
		log.LocalTimestamp = local.UpdatedAt
	}
	if remote != nil {
		log.RemoteTimestamp = remote.UpdatedAt
	}
	if loser != nil {
		if snapshot, err := json.Marshal(loser); err == nil {
			log.LosingSnapshot = snapshot
		}
	}
	return log
}
