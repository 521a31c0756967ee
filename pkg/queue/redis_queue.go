package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"numainda/internal/util"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// JobStatus tracks one upload processing job.
type JobStatus struct {
	ID           string    `json:"id"`
	UploadID     string    `json:"uploadId"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Handler processes one job. Returning an error wrapped with Permanent marks
// the job failed without redelivery.
type Handler func(ctx context.Context, job JobStatus) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type RedisJobQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	logger       *slog.Logger
	once         sync.Once
	wg           sync.WaitGroup
}

type RedisQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
	Logger     *slog.Logger
}

func NewRedisJobQueue(cfg RedisQueueConfig) (*RedisJobQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "default"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 7 * 24 * time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	// Ingesting a long document can take minutes; a short idle window would
	// hand a live job to a second consumer.
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 15 * time.Minute
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 1
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisJobQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		jobTTL:       jobTTL,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		readCount:    readCount,
		claimCount:   claimCount,
		logger:       logger.With("stream", stream),
	}, nil
}

// Ping checks the Redis connection.
func (q *RedisJobQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close waits for running consumers to stop and closes the client. Cancel the
// context passed to Start first.
func (q *RedisJobQueue) Close() error {
	q.wg.Wait()
	return q.client.Close()
}

// Enqueue records a queued job for uploadID and appends it to the stream.
func (q *RedisJobQueue) Enqueue(ctx context.Context, uploadID string) (JobStatus, error) {
	uploadID = strings.TrimSpace(uploadID)
	if uploadID == "" {
		return JobStatus{}, errors.New("uploadId required")
	}
	now := time.Now().UTC()
	job := JobStatus{
		ID:        util.NewID(),
		UploadID:  uploadID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return JobStatus{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":    job.ID,
			"upload_id": job.UploadID,
		},
	}).Err(); err != nil {
		return JobStatus{}, err
	}
	return job, nil
}

func (q *RedisJobQueue) GetJob(ctx context.Context, jobID string) (JobStatus, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return JobStatus{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return JobStatus{}, false, err
	}
	if len(data) == 0 {
		return JobStatus{}, false, nil
	}
	return decodeJobStatus(jobID, data), true, nil
}

// Start launches concurrency consumers that run until ctx is cancelled.
func (q *RedisJobQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := range concurrency {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.consumeLoop(ctx, consumer, handler)
		}()
	}
}

func (q *RedisJobQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.logger.Warn("create consumer group failed", "group", q.group, "err", err)
		}
	})
}

func (q *RedisJobQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				q.logger.Warn("read stream failed", "consumer", consumer, "err", err)
				sleepCtx(ctx, time.Second)
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisJobQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisJobQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	// Bookkeeping must land even when shutdown cancels ctx mid-job, or the
	// message stays pending and is claimed again later.
	bg := context.WithoutCancel(ctx)
	jobID, _ := msg.Values["job_id"].(string)
	uploadID, _ := msg.Values["upload_id"].(string)
	if jobID == "" || uploadID == "" {
		q.logger.Warn("dropping malformed message", "message_id", msg.ID)
		q.ackAndDel(bg, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, jobID, uploadID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		q.ackAndDel(bg, msg.ID)
		return
	}
	logger := q.logger.With("job_id", jobID, "upload_id", uploadID, "attempt", job.Attempts)
	err = handler(ctx, job)
	if err == nil {
		_ = q.markDone(bg, jobID)
		q.ackAndDel(bg, msg.ID)
		return
	}
	if IsPermanent(err) || job.Attempts >= q.maxRetries {
		logger.Error("job failed", "err", err, "permanent", IsPermanent(err))
		_ = q.markFailed(bg, jobID, err.Error())
		q.ackAndDel(bg, msg.ID)
		return
	}
	logger.Warn("job failed, retrying", "err", err, "retry_in", q.retryDelay)
	_ = q.markQueued(bg, jobID, err.Error())
	// On shutdown the retry is handed back to the stream right away rather
	// than left pending until another consumer claims it.
	sleepCtx(ctx, q.retryDelay)
	if err := q.requeueAndAck(bg, msg.ID, jobID, uploadID); err != nil {
		logger.Error("requeue failed", "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (q *RedisJobQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisJobQueue) requeueAndAck(ctx context.Context, msgID, jobID, uploadID string) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":    jobID,
			"upload_id": uploadID,
		},
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisJobQueue) markProcessing(ctx context.Context, jobID, uploadID string) (JobStatus, error) {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}
	if job.ID == "" {
		job = JobStatus{ID: jobID}
	}
	if uploadID != "" {
		job.UploadID = uploadID
	}
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return JobStatus{}, err
	}
	return job, nil
}

func (q *RedisJobQueue) markQueued(ctx context.Context, jobID, errMsg string) error {
	return q.transition(ctx, jobID, StatusQueued, errMsg)
}

func (q *RedisJobQueue) markDone(ctx context.Context, jobID string) error {
	return q.transition(ctx, jobID, StatusDone, "")
}

func (q *RedisJobQueue) markFailed(ctx context.Context, jobID, errMsg string) error {
	return q.transition(ctx, jobID, StatusFailed, errMsg)
}

func (q *RedisJobQueue) transition(ctx context.Context, jobID, status, errMsg string) error {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.ID = jobID
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisJobQueue) writeStatus(ctx context.Context, job JobStatus) error {
	key := q.jobKey(job.ID)
	payload := map[string]any{
		"id":        job.ID,
		"uploadId":  job.UploadID,
		"status":    job.Status,
		"error":     job.ErrorMessage,
		"attempts":  strconv.Itoa(job.Attempts),
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.jobTTL).Err()
	return nil
}

func (q *RedisJobQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func decodeJobStatus(jobID string, data map[string]string) JobStatus {
	job := JobStatus{
		ID:           jobID,
		UploadID:     data["uploadId"],
		Status:       data["status"],
		ErrorMessage: data["error"],
	}
	if n, err := strconv.Atoi(data["attempts"]); err == nil {
		job.Attempts = n
	}
	if t, err := time.Parse(time.RFC3339Nano, data["createdAt"]); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, data["updatedAt"]); err == nil {
		job.UpdatedAt = t
	}
	return job
}
