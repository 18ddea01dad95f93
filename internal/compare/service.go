// Package compare orchestrates a comparison: uploads are stored, their text
// is extracted and analyzed, and the result is persisted.
package compare

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/analysis"
	"github.com/hl-compare/hl-compare/internal/blob"
	"github.com/hl-compare/hl-compare/internal/extract"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/store"
)

// DefaultQuery is used when a request carries no focus query.
const DefaultQuery = "Compare these entities across all available metrics"

// ValidationError lists every problem found in a request.
type ValidationError = model.ValidationError

// Request is one comparison submission.
type Request struct {
	Entities []string
	Files    []model.Upload
	Query    string
}

// SummaryResponse describes uploaded documents without comparing them.
type SummaryResponse struct {
	DocumentsProcessed int                     `json:"documents_processed"`
	Summaries          []model.DocumentSummary `json:"summaries"`
	Overall            analysis.Overall        `json:"overall"`
}

// Service runs comparisons end to end.
type Service struct {
	blobs       blob.Store
	store       store.Store
	extractor   extract.Extractor
	analyzer    *analysis.Analyzer
	concurrency int
	now         func() time.Time
}

// New creates a Service. concurrency bounds parallel extraction.
func New(blobs blob.Store, st store.Store, ex extract.Extractor, an *analysis.Analyzer, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{
		blobs:       blobs,
		store:       st,
		extractor:   ex,
		analyzer:    an,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Compare validates req, stores its uploads and returns the persisted result.
func (s *Service) Compare(ctx context.Context, req Request) (*model.CompareResponse, error) {
	if err := model.ValidateSubmission(req.Entities, uploadNames(req.Files)); err != nil {
		return nil, err
	}
	entities := model.CleanEntities(req.Entities)
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = DefaultQuery
	}

	tmp, err := os.MkdirTemp("", "hl-compare-*")
	if err != nil {
		return nil, eris.Wrap(err, "compare: create staging dir")
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	files := make([]extract.File, 0, len(req.Files))
	fileIDs := make([]string, 0, len(req.Files))
	for i, u := range req.Files {
		f, obj, err := s.stage(ctx, tmp, i, u, true)
		if err != nil {
			return nil, err
		}
		rec := &store.FileRecord{Filename: u.Filename, Key: obj.Key, URL: obj.URL, Size: f.Size}
		if err := s.store.SaveFile(ctx, rec); err != nil {
			return nil, eris.Wrap(err, "compare: record upload")
		}
		files = append(files, f)
		fileIDs = append(fileIDs, rec.ID)
	}

	start := time.Now()
	docs := extract.ExtractAll(ctx, s.extractor, files, s.concurrency)
	summaries := extract.Summaries(docs)
	analysis.ScoreDocuments(summaries)
	result := s.analyzer.Analyze(ctx, docs, entities, query)

	resp := &model.CompareResponse{
		Comparison:        result,
		DocumentsAnalyzed: len(docs),
		Entities:          entities,
		Query:             query,
		GeneratedAt:       s.now(),
		Documents:         summaries,
	}
	id, err := s.store.CreateComparison(ctx, resp, fileIDs)
	if err != nil {
		return nil, eris.Wrap(err, "compare: persist comparison")
	}
	resp.ComparisonID = id

	zap.L().Info("compare: comparison complete",
		zap.String("comparison_id", id),
		zap.Strings("entities", entities),
		zap.Int("documents", len(docs)),
		zap.Int("categories", len(result)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// Submit adapts Compare to the session submitter contract.
func (s *Service) Submit(ctx context.Context, entities []string, files []model.Upload, query string) (*model.CompareResponse, error) {
	return s.Compare(ctx, Request{Entities: entities, Files: files, Query: query})
}

// Summarize extracts and scores uploads without storing or comparing them.
func (s *Service) Summarize(ctx context.Context, uploads []model.Upload) (*SummaryResponse, error) {
	if len(uploads) == 0 {
		return nil, &ValidationError{Problems: []string{"No files uploaded"}}
	}
	var problems []string
	for _, u := range uploads {
		if !model.AllowedFile(u.Filename) {
			problems = append(problems, fmt.Sprintf("Unsupported file type: %s", u.Filename))
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	tmp, err := os.MkdirTemp("", "hl-compare-summary-*")
	if err != nil {
		return nil, eris.Wrap(err, "compare: create staging dir")
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	files := make([]extract.File, 0, len(uploads))
	sources := make([]analysis.Source, 0, len(uploads))
	for i, u := range uploads {
		f, _, err := s.stage(ctx, tmp, i, u, false)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		sources = append(sources, analysis.Source{Filename: f.Name, Size: f.Size})
	}

	docs := extract.ExtractAll(ctx, s.extractor, files, s.concurrency)
	summaries := extract.Summaries(docs)
	analysis.ScoreDocuments(summaries)
	return &SummaryResponse{
		DocumentsProcessed: len(docs),
		Summaries:          summaries,
		Overall:            analysis.OverallQuality(sources),
	}, nil
}

// Get returns a stored comparison.
func (s *Service) Get(ctx context.Context, id string) (*model.CompareResponse, error) {
	return s.store.GetComparison(ctx, id)
}

// List returns the most recent comparisons, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]store.ComparisonSummary, error) {
	return s.store.ListComparisons(ctx, limit)
}

// stage copies one upload into dir for extraction. When persist is set the
// bytes are also written to blob storage in the same pass.
func (s *Service) stage(ctx context.Context, dir string, i int, u model.Upload, persist bool) (extract.File, blob.Object, error) {
	var obj blob.Object
	if u.Open == nil {
		return extract.File{}, obj, eris.Errorf("compare: upload %q has no content", u.Filename)
	}
	rc, err := u.Open()
	if err != nil {
		return extract.File{}, obj, eris.Wrapf(err, "compare: open upload %q", u.Filename)
	}
	defer rc.Close() //nolint:errcheck

	path := filepath.Join(dir, fmt.Sprintf("%03d_%s", i, blob.SanitizeName(u.Filename)))
	out, err := os.Create(path)
	if err != nil {
		return extract.File{}, obj, eris.Wrap(err, "compare: create staging file")
	}
	defer out.Close() //nolint:errcheck

	if persist {
		obj, err = s.blobs.Put(ctx, u.Filename, io.TeeReader(rc, out), u.Size)
		if err != nil {
			return extract.File{}, obj, eris.Wrapf(err, "compare: store upload %q", u.Filename)
		}
	}
	// Copies whatever the blob store left unread, or everything when not persisting.
	if _, err := io.Copy(out, rc); err != nil {
		return extract.File{}, obj, eris.Wrapf(err, "compare: stage upload %q", u.Filename)
	}
	if err := out.Close(); err != nil {
		return extract.File{}, obj, eris.Wrap(err, "compare: close staging file")
	}

	info, err := os.Stat(path)
	if err != nil {
		return extract.File{}, obj, eris.Wrap(err, "compare: stat staging file")
	}
	return extract.File{
		Name:        u.Filename,
		Path:        path,
		Size:        info.Size(),
		DownloadURL: obj.URL,
	}, obj, nil
}

func uploadNames(files []model.Upload) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	return names
}
