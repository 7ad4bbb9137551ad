package services

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scheduler runs the periodic maintenance jobs of one instance.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{}))),
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule adds or replaces the job registered under name.
func (s *Scheduler) Schedule(name, spec string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	id, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		job()
		logger.Debugf("[Scheduler] %s finished in %s", name, time.Since(start))
	})
	if err != nil {
		return err
	}
	s.entries[name] = id
	logger.Infof("[Scheduler] %s scheduled (%s)", name, spec)
	return nil
}

// Unschedule removes the job registered under name, if any.
func (s *Scheduler) Unschedule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// Next reports when the named job fires next.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Infof("[Scheduler] Started")
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Infof("[Scheduler] Stopped")
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug().Fields(keysAndValues).Msg("[Scheduler] " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error().Err(err).Fields(keysAndValues).Msg("[Scheduler] " + msg)
}

// JobLocks lets exactly one instance claim a job run across the cluster.
type JobLocks struct {
	db    *gorm.DB
	owner string
	now   func() time.Time
}

func NewJobLocks(db *gorm.DB) *JobLocks {
	host, _ := os.Hostname()
	return &JobLocks{db: db, owner: host + "/" + uuid.NewString()[:8], now: time.Now}
}

// Claim takes the lock for (name, key). It fails when another owner holds an
// unexpired claim; expired claims are taken over.
func (l *JobLocks) Claim(name, key string, ttl time.Duration) (bool, error) {
	now := l.now()
	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  l.owner,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	res := l.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = l.db.Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND lock_key = ? AND (expires_at < ? OR locked_by = ?)", name, key, now, l.owner).
		Updates(map[string]interface{}{"locked_by": l.owner, "locked_at": now, "expires_at": now.Add(ttl)})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release drops a claim held by this owner.
func (l *JobLocks) Release(name, key string) error {
	return l.db.Where("lock_name = ? AND lock_key = ? AND locked_by = ?", name, key, l.owner).
		Delete(&models.SchedulerLock{}).Error
}

// Purge deletes claims that expired before the cutoff.
func (l *JobLocks) Purge(before time.Time) (int64, error) {
	res := l.db.Where("expires_at < ?", before).Delete(&models.SchedulerLock{})
	return res.RowsAffected, res.Error
}

// RunLocked runs fn only if the claim for (name, key) is won.
func (l *JobLocks) RunLocked(name, key string, ttl time.Duration, fn func() error) (bool, error) {
	ok, err := l.Claim(name, key, ttl)
	if err != nil || !ok {
		return false, err
	}
	return true, fn()
}

// MaintenanceJobs bundles the periodic jobs the server registers.
type MaintenanceJobs struct {
	Sessions  *SessionManager
	Logs      *SystemLogService
	Usage     *AIUsageService
	Reviews   *AIReviewService
	Locks     *JobLocks
	UsageDays int
	StaleRuns time.Duration
}

// Register installs the maintenance jobs; reaperSpec drives the session reaper.
func (j *MaintenanceJobs) Register(s *Scheduler, reaperSpec string) error {
	if j.Sessions != nil && reaperSpec != "" {
		if err := s.Schedule("session-reaper", reaperSpec, func() { j.Sessions.ReapIdle() }); err != nil {
			return err
		}
	}
	if j.Reviews != nil {
		stale := j.StaleRuns
		if stale <= 0 {
			stale = 15 * time.Minute
		}
		if err := s.Schedule("ai-review-recover", "*/5 * * * *", func() {
			if n, err := j.Reviews.RecoverStale(stale); err != nil {
				logger.Warnf("[Scheduler] Recovering stale AI review runs failed: %v", err)
			} else if n > 0 {
				logger.Infof("[Scheduler] Marked %d stale AI review runs as failed", n)
			}
		}); err != nil {
			return err
		}
	}
	return s.Schedule("cleanup", "30 3 * * *", j.cleanup)
}

// cleanup runs once per day across the cluster.
func (j *MaintenanceJobs) cleanup() {
	run := func() error {
		if j.Logs != nil {
			j.Logs.RunCleanup()
		}
		if j.Usage != nil && j.UsageDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -j.UsageDays)
			if n, err := j.Usage.CleanupBefore(cutoff); err != nil {
				logger.Warnf("[Scheduler] AI usage cleanup failed: %v", err)
			} else if n > 0 {
				logger.Infof("[Scheduler] Deleted %d AI usage logs", n)
			}
		}
		if j.Locks != nil {
			if _, err := j.Locks.Purge(time.Now().AddDate(0, 0, -7)); err != nil {
				logger.Warnf("[Scheduler] Lock purge failed: %v", err)
			}
		}
		return nil
	}
	if j.Locks == nil {
		_ = run()
		return
	}
	if _, err := j.Locks.RunLocked("cleanup", time.Now().Format("2006-01-02"), 6*time.Hour, run); err != nil {
		logger.Warnf("[Scheduler] Cleanup lock failed: %v", err)
	}
}
