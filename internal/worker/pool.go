package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mockmate-backend/internal/models"
	"mockmate-backend/internal/repository"
	"mockmate-backend/internal/services"
)

// Pool consumes queued feedback-generation jobs. Queue entries are job IDs;
// the job row carries the session to generate feedback for. A Redis SetNX
// lock per job keeps concurrent workers (or replicas) from double-processing.
type Pool struct {
	redis         *redis.Client
	feedback      *services.FeedbackService
	jobRepo       *repository.JobRepo
	interviewRepo *repository.InterviewRepo
	jobTimeout    time.Duration
	workerCount   int
	stopChan      chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	feedback *services.FeedbackService,
	jobRepo *repository.JobRepo,
	interviewRepo *repository.InterviewRepo,
	jobTimeout time.Duration,
	workerCount int,
) *Pool {
	return &Pool{
		redis:         redisClient,
		feedback:      feedback,
		jobRepo:       jobRepo,
		interviewRepo: interviewRepo,
		jobTimeout:    jobTimeout,
		workerCount:   workerCount,
		stopChan:      make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, services.FeedbackQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		jobID, err := uuid.Parse(result[1])
		if err != nil {
			log.Printf("Worker %d: bad job id on queue: %q", id, result[1])
			continue
		}

		job, err := p.jobRepo.GetByID(ctx, jobID)
		if err != nil {
			log.Printf("Worker %d: failed to load job %s: %v", id, jobID, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (session: %s)", id, job.ID, job.SessionID)

		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")

		if processErr := p.processFeedback(ctx, job); processErr != nil {
			p.handleFailure(ctx, job, processErr)
		} else {
			p.handleSuccess(ctx, job)
		}

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) processFeedback(ctx context.Context, job *models.Job) error {
	session, err := p.interviewRepo.GetBySessionID(ctx, job.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", job.SessionID, err)
	}

	genCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	if _, err := p.feedback.GenerateForSession(genCtx, session); err != nil {
		return fmt.Errorf("feedback generation failed: %w", err)
	}
	return nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.UpdateStatus(ctx, job.ID, "completed")
	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < job.MaxRetries {
		// Re-queue with backoff
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		jobID := job.ID.String()
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), services.FeedbackQueue, jobID)
		})
	} else {
		// Max retries reached
		log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	}
}
