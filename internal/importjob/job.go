package importjob

import (
	"math"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ItemError records one failed import item. Failures are isolated: the rest
// of the batch keeps running.
type ItemError struct {
	ItemID  string `json:"itemId" bson:"itemId"`
	Message string `json:"error" bson:"error"`
}

// Job is the pollable progress record of one import batch. It is created
// once per request, mutated only by its own worker and read by polling
// clients until the retention TTL discards it.
type Job struct {
	ID             string      `json:"id"`
	Status         Status      `json:"status"`
	TotalItems     int         `json:"totalItems"`
	ProcessedItems int         `json:"processedItems"`
	ImportedItems  int         `json:"importedItems"`
	FailedItems    int         `json:"failedItems"`
	Errors         []ItemError `json:"errors"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Progress is the rounded completion percentage, always in [0,100].
func (j *Job) Progress() int {
	if j.TotalItems <= 0 {
		return 100
	}
	p := int(math.Round(float64(j.ProcessedItems) / float64(j.TotalItems) * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// RecordSuccess accounts one imported item.
func (j *Job) RecordSuccess() {
	j.ProcessedItems++
	j.ImportedItems++
}

// RecordFailure accounts one failed item without stopping the batch.
func (j *Job) RecordFailure(itemID string, err error) {
	j.ProcessedItems++
	j.FailedItems++
	j.Errors = append(j.Errors, ItemError{ItemID: itemID, Message: err.Error()})
}

// Finish settles the terminal status: failed only when every item failed,
// otherwise completed — partial success is still success.
func (j *Job) Finish() {
	if j.TotalItems > 0 && j.FailedItems == j.TotalItems {
		j.Status = StatusFailed
		return
	}
	j.Status = StatusCompleted
}
