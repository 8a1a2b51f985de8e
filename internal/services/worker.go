package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
)

type Worker interface {
	Start(ctx context.Context)
	Stop()
	EnqueueApplication(appID uuid.UUID)
	EnqueueScrape(jobID uuid.UUID)
}

type worker struct {
	appRepo     repositories.ApplicationRepository
	jobRepo     repositories.JobRepository
	pipeline    PipelineService
	scraper     JobScraper
	appQueue    chan uuid.UUID
	scrapeQueue chan uuid.UUID
	concurrency int
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

func NewWorker(
	appRepo repositories.ApplicationRepository,
	jobRepo repositories.JobRepository,
	pipeline PipelineService,
	scraper JobScraper,
	concurrency int,
) Worker {
	return &worker{
		appRepo:     appRepo,
		jobRepo:     jobRepo,
		pipeline:    pipeline,
		scraper:     scraper,
		appQueue:    make(chan uuid.UUID, 100),
		scrapeQueue: make(chan uuid.UUID, 100),
		concurrency: concurrency,
		stopChan:    make(chan struct{}),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	log.Printf("🚀 Starting worker with %d concurrent workers\n", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processQueues(ctx, i+1)
	}

	w.wg.Add(1)
	go w.pollPendingWork(ctx)

	log.Println("✅ Worker started successfully")
}

// Stop implements Worker.
func (w *worker) Stop() {
	log.Println("🛑 Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	log.Println("✅ Worker stopped")
}

// EnqueueApplication implements Worker.
func (w *worker) EnqueueApplication(appID uuid.UUID) {
	select {
	case w.appQueue <- appID:
		log.Printf("📥 Application %s enqueued\n", appID)
	case <-w.stopChan:
		log.Printf("⚠️  Worker stopped, cannot enqueue application %s\n", appID)
	}
}

// EnqueueScrape implements Worker.
func (w *worker) EnqueueScrape(jobID uuid.UUID) {
	select {
	case w.scrapeQueue <- jobID:
		log.Printf("📥 Job %s enqueued for scraping\n", jobID)
	case <-w.stopChan:
		log.Printf("⚠️  Worker stopped, cannot enqueue job %s\n", jobID)
	}
}

func (w *worker) processQueues(ctx context.Context, workerID int) {
	defer w.wg.Done()
	log.Printf("👷 Worker #%d started\n", workerID)

	for {
		select {
		case <-w.stopChan:
			log.Printf("👷 Worker #%d stopped\n", workerID)
			return
		case jobID := <-w.scrapeQueue:
			log.Printf("👷 Worker #%d scraping job %s\n", workerID, jobID)
			if err := w.scraper.Scrape(ctx, jobID); err != nil {
				log.Printf("❌ Worker #%d failed to scrape job %s: %v\n", workerID, jobID, err)
			}
		case appID := <-w.appQueue:
			log.Printf("👷 Worker #%d processing application %s\n", workerID, appID)
			if err := w.pipeline.Process(ctx, appID); err != nil {
				log.Printf("❌ Worker #%d failed on application %s: %v\n", workerID, appID, err)
			} else {
				log.Printf("✅ Worker #%d completed application %s\n", workerID, appID)
			}
		}
	}
}

// pollPendingWork re-enqueues work that was created while the worker was
// down or whose enqueue was lost. The conditional status transitions make
// double enqueues harmless.
func (w *worker) pollPendingWork(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	log.Println("🔄 Starting pending work poller")

	for {
		select {
		case <-w.stopChan:
			log.Println("🔄 Pending work poller stopped")
			return
		case <-ticker.C:
			pendingJobs, err := w.jobRepo.FindByStatus(models.JobStatusPending, 10)
			if err != nil {
				log.Printf("⚠️  Failed to fetch pending jobs: %v\n", err)
			} else {
				for _, job := range pendingJobs {
					w.EnqueueScrape(job.ID)
				}
			}

			pendingApps, err := w.appRepo.FindByStatus(models.ApplicationStatusPending, 10)
			if err != nil {
				log.Printf("⚠️  Failed to fetch pending applications: %v\n", err)
				continue
			}
			if len(pendingApps) > 0 {
				log.Printf("📋 Found %d pending applications\n", len(pendingApps))
			}
			for _, app := range pendingApps {
				w.EnqueueApplication(app.ID)
			}
		}
	}
}
