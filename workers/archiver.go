package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"debate-arena-system/services"
	"debate-arena-system/utils"

	"github.com/gosimple/slug"
)

type transcriptJob struct {
	BattleID  string                   `json:"battle_id"`
	Topic     string                   `json:"topic"`
	StartedAt time.Time                `json:"started_at"`
	Messages  []services.BattleMessage `json:"messages"`
}

// TranscriptArchiver uploads finished-battle message logs to R2 as JSON.
// Fire-and-forget: a full queue drops the transcript with a log line and
// the battle outcome is unaffected.
type TranscriptArchiver struct {
	jobs chan transcriptJob
}

func NewTranscriptArchiver(buffer int) *TranscriptArchiver {
	if buffer <= 0 {
		buffer = 64
	}
	return &TranscriptArchiver{jobs: make(chan transcriptJob, buffer)}
}

// ArchiveBattle enqueues a transcript without blocking the caller.
func (a *TranscriptArchiver) ArchiveBattle(battleID, topic string, startedAt time.Time, messages []services.BattleMessage) {
	job := transcriptJob{
		BattleID:  battleID,
		Topic:     topic,
		StartedAt: startedAt,
		Messages:  messages,
	}
	select {
	case a.jobs <- job:
	default:
		log.Printf("[ARCHIVE] queue full, dropping transcript for battle %s", battleID)
	}
}

func (a *TranscriptArchiver) Start(ctx context.Context) {
	log.Println("[ARCHIVE] starting transcript archiver")
	go a.run(ctx)
}

func (a *TranscriptArchiver) run(ctx context.Context) {
	for {
		select {
		case job := <-a.jobs:
			a.upload(job)
		case <-ctx.Done():
			log.Println("[ARCHIVE] transcript archiver stopped")
			return
		}
	}
}

func (a *TranscriptArchiver) upload(job transcriptJob) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Printf("[ARCHIVE] failed to marshal transcript for battle %s: %v", job.BattleID, err)
		return
	}

	key := fmt.Sprintf("transcripts/%s/%s-%s.json",
		job.StartedAt.Format("2006-01-02"), slug.Make(job.Topic), job.BattleID)

	url, err := utils.UploadBytesToR2(key, "application/json", data)
	if err != nil {
		log.Printf("[ARCHIVE] upload failed for battle %s: %v", job.BattleID, err)
		return
	}
	log.Printf("[ARCHIVE] archived battle %s -> %s", job.BattleID, url)
}
