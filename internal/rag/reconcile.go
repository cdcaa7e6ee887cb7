package rag

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/archrag/internal/chunk"
	"github.com/Aman-CERP/archrag/internal/store"
)

// Reconcile checks catalog/index consistency and removes orphaned chunks.
// With a non-empty sourcePath only that document is checked; otherwise the
// whole catalog.
//
// Two failure shapes exist. A catalog row whose chunk IDs are missing from
// the vector index means a crashed ingest; it is reported so the caller
// can re-ingest. Index chunks whose document left the catalog are orphans
// and are deleted from both indexes here.
func (o *Orchestrator) Reconcile(ctx context.Context, sourcePath string) (*ReconcileReport, error) {
	var docs []*store.Document
	if sourcePath != "" {
		doc, err := o.c.Catalog.GetDocument(ctx, sourcePath)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	} else {
		var err error
		docs, err = o.c.Catalog.ListDocuments(ctx)
		if err != nil {
			return nil, err
		}
	}

	report := &ReconcileReport{}
	known := make(map[string]struct{})

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.DocumentsChecked++
		known[doc.SourcePath] = struct{}{}

		// Chunk IDs are deterministic, so the expected set re-derives from
		// the catalog row alone.
		expected := make(map[string]struct{}, doc.ChunkCount)
		for i := 0; i < doc.ChunkCount; i++ {
			expected[chunk.ChunkID(doc.SourcePath, i)] = struct{}{}
		}

		hits, err := o.c.Vectors.FindByField(ctx, store.FieldSourcePath, doc.SourcePath, doc.ChunkCount*2)
		if err != nil {
			return report, err
		}

		present := make(map[string]struct{}, len(hits))
		var stale []string
		for _, hit := range hits {
			present[hit.ID] = struct{}{}
			if _, ok := expected[hit.ID]; !ok {
				stale = append(stale, hit.ID)
			}
		}
		for id := range expected {
			if _, ok := present[id]; !ok {
				report.MissingVector++
			}
		}

		// Stale chunk IDs under a live document come from an interrupted
		// re-ingest of a shrinking file.
		if len(stale) > 0 {
			report.OrphanedChunks += len(stale)
			if err := o.deleteChunks(ctx, stale); err != nil {
				return report, err
			}
			report.Repaired += len(stale)
		}
	}

	// A full pass also sweeps index chunks whose document left the catalog.
	if sourcePath == "" {
		orphans, err := o.orphanedSourcePaths(ctx, known)
		if err != nil {
			return report, err
		}
		for _, path := range orphans {
			n, err := o.c.Vectors.DeleteBy(ctx, store.FieldSourcePath, path)
			if err != nil {
				return report, err
			}
			if _, err := o.c.Keywords.DeleteBy(ctx, store.FieldSourcePath, path); err != nil {
				return report, err
			}
			report.OrphanedChunks += n
			report.Repaired += n
		}
	}

	if report.OrphanedChunks > 0 || report.MissingVector > 0 {
		o.log.Info("reconcile_completed",
			slog.Int("documents", report.DocumentsChecked),
			slog.Int("missing_vector", report.MissingVector),
			slog.Int("orphaned", report.OrphanedChunks),
			slog.Int("repaired", report.Repaired))
	}
	return report, nil
}

// orphanedSourcePaths scans the vector index for source paths absent from
// the catalog.
func (o *Orchestrator) orphanedSourcePaths(ctx context.Context, known map[string]struct{}) ([]string, error) {
	// Local documents only; web chunks live in their own index but a
	// guard against the shared-payload shape costs nothing.
	hits, err := o.c.Vectors.FindByField(ctx, store.FieldDocumentType, string(store.DocumentTypeMarkdown), 0)
	if err != nil {
		return nil, err
	}
	for _, t := range []store.DocumentType{store.DocumentTypePDF, store.DocumentTypeText} {
		more, err := o.c.Vectors.FindByField(ctx, store.FieldDocumentType, string(t), 0)
		if err != nil {
			return nil, err
		}
		hits = append(hits, more...)
	}

	seen := make(map[string]struct{})
	var orphans []string
	for _, hit := range hits {
		path := hit.Payload.SourcePath
		if _, ok := known[path]; ok {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		orphans = append(orphans, path)
	}
	return orphans, nil
}

func (o *Orchestrator) deleteChunks(ctx context.Context, ids []string) error {
	if err := o.c.Vectors.DeleteIDs(ctx, ids); err != nil {
		return err
	}
	return o.c.Keywords.DeleteIDs(ctx, ids)
}

// CompactIfEligible rebuilds the vector index when lazy deletions have
// accumulated past the configured thresholds. Returns the number of
// dropped nodes, 0 when compaction did not run.
func (o *Orchestrator) CompactIfEligible() (int, error) {
	if o.cfg != nil && !o.cfg.Compaction.Enabled {
		return 0, nil
	}
	hnsw, ok := o.c.Vectors.(*store.HNSWIndex)
	if !ok {
		return 0, nil
	}

	threshold := 0.2
	minOrphans := 100
	if o.cfg != nil {
		if o.cfg.Compaction.OrphanThreshold > 0 {
			threshold = o.cfg.Compaction.OrphanThreshold
		}
		if o.cfg.Compaction.MinOrphanCount > 0 {
			minOrphans = o.cfg.Compaction.MinOrphanCount
		}
	}

	info := hnsw.Info()
	total := info.PointCount + info.Orphans
	if info.Orphans < minOrphans || total == 0 {
		return 0, nil
	}
	if float64(info.Orphans)/float64(total) <= threshold {
		return 0, nil
	}

	dropped, err := hnsw.Compact()
	if err != nil {
		return 0, err
	}
	o.persistVectors()
	o.log.Info("vector_index_compacted", slog.Int("dropped", dropped))
	return dropped, nil
}
