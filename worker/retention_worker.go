package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"taskory/services"
)

// RetentionWorker periodically deletes read notifications past the
// retention threshold.
type RetentionWorker struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewRetentionWorker(db *gorm.DB, logger *log.Logger) *RetentionWorker {
	return &RetentionWorker{
		DB:     db,
		Logger: logger,
	}
}

func (rw *RetentionWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	rw.Logger.Println("Retention worker started")

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	rw.sweep()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Retention worker shutting down...")
			return
		case <-ticker.C:
			rw.sweep()
		}
	}
}

func (rw *RetentionWorker) sweep() {
	deleted, err := services.SweepNotifications(rw.DB)
	if err != nil {
		rw.Logger.Printf("Error sweeping notifications: %v", err)
		return
	}
	if deleted > 0 {
		rw.Logger.Printf("Swept %d read notifications past retention", deleted)
	}
}
