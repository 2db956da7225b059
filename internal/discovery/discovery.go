// Package discovery feeds new tenders from the Tenderland export into the
// record store and resolves registration numbers that are not stored yet.
package discovery

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/metrics"
	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/internal/store"
	"github.com/sells-group/tender-cli/pkg/tenderland"
)

// Options selects the saved autosearch and the export size.
type Options struct {
	AutosearchID int
	BatchSize    int
	Limit        int
}

// SyncResult summarizes one pass over the export feed.
type SyncResult struct {
	ExportID int `json:"export_id"`
	Fetched  int `json:"fetched"`
	Created  int `json:"created"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Syncer pulls tenders from Tenderland into the store.
type Syncer struct {
	store  store.Store
	client tenderland.Client
	opts   Options
}

// NewSyncer creates a Syncer.
func NewSyncer(st store.Store, client tenderland.Client, opts Options) *Syncer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	return &Syncer{store: st, client: client, opts: opts}
}

// Sync creates an export from the autosearch, waits for it and inserts
// every tender not yet known. Existing records are never modified.
func (s *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	log := zap.L().With(zap.String("phase", "discovery"), zap.Int("autosearch_id", s.opts.AutosearchID))

	exp, err := s.client.CreateExport(ctx, s.opts.AutosearchID, s.opts.BatchSize, s.opts.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: create export")
	}
	resp, err := s.client.AwaitExport(ctx, exp.ID)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: fetch export")
	}

	result := &SyncResult{ExportID: exp.ID, Fetched: len(resp.Items)}
	log.Info("export fetched", zap.Int("export_id", exp.ID), zap.Int("tenders", len(resp.Items)))

	for _, e := range resp.Items {
		if ctx.Err() != nil {
			break
		}
		created, err := s.store.UpsertByKey(ctx, NewRecord(e.Tender))
		if err != nil {
			log.Warn("insert tender failed", zap.String("reg_number", e.Tender.RegNumber), zap.Error(err))
			result.Errors++
			continue
		}
		if created {
			metrics.TendersDiscovered.Inc()
			result.Created++
		} else {
			result.Skipped++
		}
	}

	log.Info("discovery complete",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
	return result, ctx.Err()
}

// Lookup returns the stored record for regNumber. Unknown numbers are
// searched in Tenderland and stored on first sight; a number unknown to
// both yields resilience.ErrTenderNotFound.
func (s *Syncer) Lookup(ctx context.Context, regNumber string) (*model.TenderRecord, error) {
	rec, err := s.store.FindByKey(ctx, regNumber)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: load %s", regNumber)
	}
	if rec != nil {
		return rec, nil
	}

	zap.L().Info("tender not stored, searching feed", zap.String("reg_number", regNumber))
	tender, err := s.client.Search(ctx, regNumber)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: search %s", regNumber)
	}
	if tender == nil {
		return nil, eris.Wrapf(resilience.ErrTenderNotFound, "discovery: %s", regNumber)
	}

	// The feed may answer with a different number; the record is keyed by
	// what was asked for so later lookups hit the store.
	rec = NewRecord(*tender)
	rec.RegNumber = regNumber
	created, err := s.store.UpsertByKey(ctx, rec)
	if err != nil {
		return nil, &resilience.StoreWriteError{Key: regNumber, Path: "metadata", Err: err}
	}
	if created {
		metrics.TendersDiscovered.Inc()
	}
	return s.store.FindByKey(ctx, regNumber)
}

// NewRecord maps a feed tender onto a new tender record.
func NewRecord(t tenderland.Tender) *model.TenderRecord {
	customers := make([]model.Customer, 0, len(t.Customers))
	for _, c := range t.Customers {
		customers = append(customers, model.Customer{ShortName: c.ShortName})
	}
	return model.NewTenderRecord(t.RegNumber, model.TenderMetadata{
		Name:          t.Name,
		BeginPrice:    t.BeginPrice,
		PublishDate:   t.PublishDate,
		EndDate:       t.EndDate,
		Region:        t.Region,
		TypeName:      t.TypeName,
		LotCategories: t.LotCategories,
		FilesURL:      t.Files,
		Module:        t.Module,
		EtpLink:       t.EtpLink,
		Customers:     customers,
	})
}
