package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-bundling-service/backend/config"
	"github.com/gilchrisn/graph-bundling-service/backend/models"
	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
	"github.com/gilchrisn/graph-bundling-service/pkg/layout"
	pkgmodels "github.com/gilchrisn/graph-bundling-service/pkg/models"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrResultNotReady    = errors.New("job result not ready")
	ErrInvalidParameters = errors.New("invalid job parameters")
)

// BundleOutput is a completed job's paths together with the node positions
// they were bundled from (which differ from the dataset when a layout ran)
type BundleOutput struct {
	Graph  *pkgmodels.Graph
	Result *bundling.Result
}

// JobService handles background bundling jobs
type JobService struct {
	jobs            map[string]*models.Job
	results         map[string]*BundleOutput
	cancels         map[string]context.CancelFunc
	workers         chan struct{}
	datasetService  *DatasetService
	base            bundling.Config
	layoutOptions   layout.Options
	mutex           sync.RWMutex
	jobTimeout      time.Duration
	jobTTL          time.Duration
	cleanupInterval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJobService creates a job service running at most cfg.MaxWorkers
// bundlings at once. base holds the server's default bundling parameters.
func NewJobService(datasetService *DatasetService, cfg config.JobConfig, base bundling.Config) *JobService {
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 4
	}
	service := &JobService{
		jobs:            make(map[string]*models.Job),
		results:         make(map[string]*BundleOutput),
		cancels:         make(map[string]context.CancelFunc),
		workers:         make(chan struct{}, workers),
		datasetService:  datasetService,
		base:            base,
		layoutOptions:   layout.DefaultOptions(),
		jobTimeout:      cfg.JobTimeout,
		jobTTL:          cfg.ResultTTL,
		cleanupInterval: cfg.CleanupInterval,
		stop:            make(chan struct{}),
	}

	if service.cleanupInterval > 0 && service.jobTTL > 0 {
		service.wg.Add(1)
		go service.cleanupLoop()
	}

	return service
}

func validLayout(name string) bool {
	switch name {
	case "", layout.MethodNone, layout.MethodRandom, layout.MethodCircular, layout.MethodForce, layout.MethodMDS:
		return true
	}
	return false
}

// Submit validates the parameters against the dataset and queues a job
func (s *JobService) Submit(ctx context.Context, datasetID string, params models.JobParameters) (*models.Job, error) {
	if _, err := s.datasetService.Graph(ctx, datasetID); err != nil {
		return nil, err
	}

	cfg := params.Apply(s.base)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	if params.Layout != nil && !validLayout(*params.Layout) {
		return nil, fmt.Errorf("%w: unknown layout %q", ErrInvalidParameters, *params.Layout)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	select {
	case <-s.stop:
		return nil, errors.New("job service is shut down")
	default:
	}

	// Generate unique job ID
	jobID := uuid.New().String()

	now := time.Now()
	job := &models.Job{
		ID:         jobID,
		DatasetID:  datasetID,
		Parameters: params,
		Status:     models.JobStatusQueued,
		Progress: models.JobProgress{
			Percentage: 0,
			Message:    "Queued",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	s.jobs[jobID] = job
	s.cancels[jobID] = cancel

	log.Info().
		Str("job_id", jobID).
		Str("dataset_id", datasetID).
		Int("max_iterations", cfg.MaxIterations).
		Float64("bandwidth", cfg.InitialBandwidth).
		Msg("Job submitted")

	// Start processing in background
	s.wg.Add(1)
	go s.processJob(jobCtx, jobID, cfg)

	snapshot := *job
	return &snapshot, nil
}

// Get returns a snapshot of a job
func (s *JobService) Get(jobID string) (*models.Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	snapshot := *job
	return &snapshot, nil
}

// GetResult retrieves the bundled paths of a completed job
func (s *JobService) GetResult(jobID string) (*BundleOutput, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	result, exists := s.results[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: job %s is %s", ErrResultNotReady, jobID, job.Status)
	}

	return result, nil
}

// List returns snapshots of all jobs for a dataset, oldest first
func (s *JobService) List(datasetID string) []*models.Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	jobs := make([]*models.Job, 0)
	for _, job := range s.jobs {
		if job.DatasetID == datasetID {
			snapshot := *job
			jobs = append(jobs, &snapshot)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	return jobs
}

// GetActiveJobsForDataset returns the queued and running jobs of a dataset
func (s *JobService) GetActiveJobsForDataset(datasetID string) []*models.Job {
	var active []*models.Job
	for _, job := range s.List(datasetID) {
		if !job.Status.Finished() {
			active = append(active, job)
		}
	}
	return active
}

// Cancel stops a queued or running job. Finished jobs are left unchanged.
func (s *JobService) Cancel(jobID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if job.Status.Finished() {
		return nil
	}

	job.Status = models.JobStatusCancelled
	job.Progress.Message = "Cancelled"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now
	s.releaseLocked(jobID)

	log.Info().
		Str("job_id", jobID).
		Msg("Job cancelled")

	return nil
}

// Close cancels outstanding jobs and waits for workers and the cleanup loop
func (s *JobService) Close() {
	s.stopOnce.Do(func() {
		s.mutex.Lock()
		close(s.stop)
		for jobID := range s.cancels {
			s.cancelLocked(jobID, "Server shutting down")
		}
		s.mutex.Unlock()
	})
	s.wg.Wait()
}

func (s *JobService) cancelLocked(jobID, message string) {
	job := s.jobs[jobID]
	if job != nil && !job.Status.Finished() {
		job.Status = models.JobStatusCancelled
		job.Progress.Message = message
		now := time.Now()
		job.CompletedAt = &now
		job.UpdatedAt = now
	}
	s.releaseLocked(jobID)
}

// releaseLocked cancels and forgets the job's context
func (s *JobService) releaseLocked(jobID string) {
	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
		delete(s.cancels, jobID)
	}
}

// processJob processes a job in the background
func (s *JobService) processJob(ctx context.Context, jobID string, cfg bundling.Config) {
	defer s.wg.Done()

	// Acquire worker slot
	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		return
	}

	s.mutex.RLock()
	job, exists := s.jobs[jobID]
	var datasetID string
	var layoutMethod string
	if exists {
		datasetID = job.DatasetID
		if job.Parameters.Layout != nil {
			layoutMethod = *job.Parameters.Layout
		}
	}
	s.mutex.RUnlock()

	if !exists {
		log.Error().Str("job_id", jobID).Msg("Job not found during processing")
		return
	}
	if ctx.Err() != nil {
		return
	}

	// Update job status to running and set start time
	startTime := time.Now()
	s.updateJobStatusWithStartTime(jobID, models.JobStatusRunning, 0, "Starting...", &startTime)

	log.Info().
		Str("job_id", jobID).
		Str("dataset_id", datasetID).
		Msg("Job processing started")

	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	g, err := s.datasetService.Graph(ctx, datasetID)
	if err != nil {
		s.failJob(jobID, fmt.Errorf("failed to get dataset: %w", err))
		return
	}

	if layoutMethod != "" && layoutMethod != layout.MethodNone {
		s.updateJobStatus(jobID, models.JobStatusRunning, 0, fmt.Sprintf("Computing %s layout", layoutMethod))
		if g, err = layout.Apply(g, layoutMethod, s.layoutOptions); err != nil {
			s.failJob(jobID, fmt.Errorf("layout failed: %w", err))
			return
		}
	}

	// Create progress callback
	cfg.Progress = func(iteration, maxIterations int, maxDisplacement float64) {
		percentage := 100
		if maxIterations > 0 {
			percentage = iteration * 100 / maxIterations
		}
		s.updateJobStatus(jobID, models.JobStatusRunning, percentage,
			fmt.Sprintf("Iteration %d/%d, max displacement %.4g", iteration, maxIterations, maxDisplacement))
	}

	result, err := bundling.Bundle(ctx, g, cfg)
	if err != nil {
		s.failJob(jobID, fmt.Errorf("bundling failed: %w", err))
		return
	}

	s.completeJob(jobID, &BundleOutput{Graph: g, Result: result}, time.Since(startTime))
}

// updateJobStatus updates job progress unless the job already finished
func (s *JobService) updateJobStatus(jobID string, status models.JobStatus, percentage int, message string) {
	s.updateJobStatusWithStartTime(jobID, status, percentage, message, nil)
}

// updateJobStatusWithStartTime updates job progress and sets start time
func (s *JobService) updateJobStatusWithStartTime(jobID string, status models.JobStatus, percentage int, message string, startTime *time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Finished() {
		return
	}

	job.Status = status
	job.Progress.Percentage = percentage
	job.Progress.Message = message
	job.UpdatedAt = time.Now()
	if startTime != nil {
		job.StartedAt = startTime
	}

	log.Debug().
		Str("job_id", jobID).
		Str("status", string(status)).
		Int("percentage", percentage).
		Str("message", message).
		Msg("Job status updated")
}

// completeJob marks a job as completed with results
func (s *JobService) completeJob(jobID string, output *BundleOutput, elapsed time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Finished() {
		return
	}

	result := output.Result
	job.Status = models.JobStatusCompleted
	job.Progress.Percentage = 100
	job.Progress.Message = "Complete"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now

	// Set job result summary
	job.Result = &models.JobResult{
		Iterations:       result.Iterations,
		Converged:        result.Converged,
		FinalBandwidth:   result.FinalBandwidth,
		MeanDisplacement: result.Stats.MeanDisplacement,
		MaxDisplacement:  result.Stats.MaxDisplacement,
		PathCount:        len(result.Paths),
		ProcessingTimeMS: elapsed.Milliseconds(),
	}

	// Store full bundling output
	s.results[jobID] = output
	s.releaseLocked(jobID)

	log.Info().
		Str("job_id", jobID).
		Int("iterations", result.Iterations).
		Bool("converged", result.Converged).
		Float64("max_displacement", result.Stats.MaxDisplacement).
		Int64("processing_time_ms", elapsed.Milliseconds()).
		Msg("Job completed successfully")
}

// failJob marks a job as failed
func (s *JobService) failJob(jobID string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Finished() {
		return
	}

	job.Status = models.JobStatusFailed
	job.Error = err.Error()
	job.Progress.Message = "Failed"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now
	s.releaseLocked(jobID)

	log.Error().
		Str("job_id", jobID).
		Err(err).
		Msg("Job failed")
}

// cleanupLoop periodically cleans up old jobs and results
func (s *JobService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.stop:
			return
		}
	}
}

// cleanup removes finished jobs not updated since now-jobTTL
func (s *JobService) cleanup(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := now.Add(-s.jobTTL)
	cleaned := 0

	for jobID, job := range s.jobs {
		if job.Status.Finished() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, jobID)
			delete(s.results, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Info().
			Int("cleaned_jobs", cleaned).
			Msg("Job cleanup completed")
	}
}
