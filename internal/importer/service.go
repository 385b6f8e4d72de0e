package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/draftdeck/draftdeck/internal/document"
	docservice "github.com/draftdeck/draftdeck/internal/document/service"
	"github.com/draftdeck/draftdeck/internal/importjob"
	"github.com/draftdeck/draftdeck/pkg/logger"
	"github.com/draftdeck/draftdeck/pkg/metrics"
	"github.com/google/uuid"
)

var ErrValidation = errors.New("invalid import request")

// Item identifies one provider object to import.
type Item struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "template" or "envelope"
}

type Options struct {
	AsTemplates       bool `json:"asTemplates,omitempty"`
	PreserveVariables bool `json:"preserveVariables,omitempty"`
	IncludeSignatures bool `json:"includeSignatures,omitempty"`
}

// Archiver stores the raw provider payload of each imported item for audit.
// Optional; a nil archiver disables archiving.
type Archiver interface {
	Archive(ctx context.Context, key string, data []byte) error
}

// Service runs import batches out of band. Start returns a job id
// immediately; the batch is processed item by item with per-item failure
// isolation and progress is published to the job store after every item.
type Service struct {
	provider    Provider
	jobs        importjob.Store
	docs        *docservice.Service
	archive     Archiver
	itemTimeout time.Duration
}

func NewService(provider Provider, jobs importjob.Store, docs *docservice.Service, archive Archiver) *Service {
	return &Service{
		provider:    provider,
		jobs:        jobs,
		docs:        docs,
		archive:     archive,
		itemTimeout: 30 * time.Second,
	}
}

// Start validates the batch synchronously, registers a pending job and
// kicks off the worker.
func (s *Service) Start(ctx context.Context, ownerID string, items []Item, opts Options) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("%w: no items", ErrValidation)
	}
	for _, it := range items {
		if it.ID == "" {
			return "", fmt.Errorf("%w: item without id", ErrValidation)
		}
		switch it.Type {
		case "template", "envelope":
		default:
			return "", fmt.Errorf("%w: unknown item type %q", ErrValidation, it.Type)
		}
	}

	j := &importjob.Job{
		ID:         uuid.NewString(),
		Status:     importjob.StatusPending,
		TotalItems: len(items),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.jobs.Save(ctx, j); err != nil {
		return "", err
	}
	go s.run(j.ID, ownerID, items, opts)
	return j.ID, nil
}

// Status returns the current job snapshot. Expired jobs are reported as not
// found, same as jobs that never existed.
func (s *Service) Status(ctx context.Context, jobID string) (*importjob.Job, error) {
	return s.jobs.Get(ctx, jobID)
}

// run processes the batch detached from the originating request. A batch
// level crash marks the job failed with one synthetic error entry; per-item
// errors never abort the remaining items.
func (s *Service) run(jobID, ownerID string, items []Item, opts Options) {
	ctx := context.Background()
	j, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		logger.Errorf("import job %s vanished before start: %v", jobID, err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			j.Status = importjob.StatusFailed
			j.Errors = append(j.Errors, importjob.ItemError{ItemID: "batch", Message: fmt.Sprintf("import crashed: %v", r)})
			if err := s.jobs.Save(ctx, j); err != nil {
				logger.Errorf("save crashed import job %s: %v", jobID, err)
			}
		}
	}()

	j.Status = importjob.StatusProcessing
	if err := s.jobs.Save(ctx, j); err != nil {
		logger.Warnf("save import job %s: %v", jobID, err)
	}

	for _, item := range items {
		if err := s.importOne(ctx, ownerID, item, opts); err != nil {
			j.RecordFailure(item.ID, err)
			metrics.ImportItems.WithLabelValues("failed").Inc()
			logger.Warnf("import job %s: item %s failed: %v", jobID, item.ID, err)
		} else {
			j.RecordSuccess()
			metrics.ImportItems.WithLabelValues("imported").Inc()
		}
		if err := s.jobs.Save(ctx, j); err != nil {
			logger.Warnf("save import job %s: %v", jobID, err)
		}
	}

	j.Finish()
	if err := s.jobs.Save(ctx, j); err != nil {
		logger.Errorf("save finished import job %s: %v", jobID, err)
	}
	logger.Infof("import job %s finished: %d imported, %d failed", jobID, j.ImportedItems, j.FailedItems)
}

func (s *Service) importOne(ctx context.Context, ownerID string, item Item, opts Options) error {
	ctx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	var (
		env *Envelope
		raw []byte
		err error
	)
	if item.Type == "template" {
		env, raw, err = s.provider.FetchTemplate(ctx, item.ID)
	} else {
		env, raw, err = s.provider.FetchEnvelope(ctx, item.ID)
	}
	if err != nil {
		return fmt.Errorf("fetch %s %s: %w", item.Type, item.ID, err)
	}

	if s.archive != nil {
		key := fmt.Sprintf("imports/%s/%s.json", item.Type, item.ID)
		if err := s.archive.Archive(ctx, key, raw); err != nil {
			// archive is audit-only; losing it is not an import failure
			logger.Warnf("archive %s: %v", key, err)
		}
	}

	res := MapEnvelope(env, MapOptions{
		IncludeSignatures: opts.IncludeSignatures,
		PreserveVariables: opts.PreserveVariables,
	})
	d := &document.Document{
		OwnerID:    ownerID,
		Title:      res.Title,
		Content:    res.Blocks,
		Variables:  res.Variables,
		Settings:   res.Settings,
		IsTemplate: opts.AsTemplates || item.Type == "template",
	}
	if _, err := s.docs.CreateDraft(ctx, d); err != nil {
		return fmt.Errorf("store imported document: %w", err)
	}
	return nil
}
