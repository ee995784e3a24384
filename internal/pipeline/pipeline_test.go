package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/consultation-extract/constants"
	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
	"github.com/joseph-ayodele/consultation-extract/internal/extract"
	"github.com/joseph-ayodele/consultation-extract/internal/ingest"
	"github.com/joseph-ayodele/consultation-extract/internal/metrics"
	"github.com/joseph-ayodele/consultation-extract/internal/repository"
	"github.com/joseph-ayodele/consultation-extract/internal/schema"
	"github.com/joseph-ayodele/consultation-extract/internal/storage"
)

func writeDocs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("docx:"+n), 0o644))
	}
}

// scripted returns an extractor answering per document name; names absent from
// answers fail with a service error.
func scripted(answers map[string]map[string]any) extract.Func {
	return func(_ context.Context, doc entity.Document, _ *schema.Schema) (extract.RawResult, error) {
		data, ok := answers[doc.Name]
		if !ok {
			return extract.RawResult{}, common.ExtractionServiceError("job "+doc.Name, errors.New("status ERROR"))
		}
		return extract.RawResult{Data: data, RemoteJobID: "job-" + doc.Name, Status: constants.RemoteSuccess}, nil
	}
}

func newBatch(ext extract.Extractor, opts ...Option) *Batch {
	proc := NewProcessor(ext, schema.CompanyInfo(), nil)
	return NewBatch(ingest.NewFSDiscoverer(ingest.DefaultOptions(), nil), proc, nil, opts...)
}

func acmeAnswer() map[string]any {
	return map[string]any{
		"company_name":         "Acme GmbH",
		"country":              "Germany",
		"consultation_date":    "2024-03-15",
		"consultation_type":    "Pop up",
		"domain":               map[string]any{"domain": "Finance"},
		"ai_field":             "Machine learning",
		"ai_maturity_level":    "Medium",
		"company_type":         "Startup",
		"target_market":        []any{"Banks & financial institutions", "Insurance companies"},
		"fair_services_sought": "Technical advice; PoC development",
	}
}

func TestProcessBatch_OneFailureStillYieldsOneRecordPerDocument(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeDocs(t, dir, "a.docx", "b.docx", "c.docx")
	b := newBatch(scripted(map[string]map[string]any{
		"a.docx": acmeAnswer(),
		"c.docx": {"company_name": "Beta Oy", "ai_maturity_level": "High"},
	}))

	result, err := b.ProcessBatch(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 3, result.Len())

	var sources []string
	for _, rec := range result.Records {
		sources = append(sources, filepath.Base(rec.Source))
	}
	assert.Equal(t, []string{"a.docx", "b.docx", "c.docx"}, sources)

	a := result.Records[0]
	assert.Equal(t, constants.JobStatusOK, a.Status)
	assert.Equal(t, "Acme GmbH", a.Get("company_name"))
	assert.Equal(t, "15-03-2024", a.Get("consultation_date"))
	assert.Equal(t, "Pop-up", a.Get("consultation_type"))
	assert.Equal(t, "Finance", a.Get("domain"))
	assert.Equal(t, "Moderate", a.Get("ai_maturity_level"))
	assert.Equal(t, "Banks & financial institutions; Insurance companies", a.Get("target_market"))
	assert.Equal(t, "Technical advice; PoC development", a.Get("fair_services_sought"))

	failed := result.Records[1]
	assert.True(t, failed.Failed())
	assert.Contains(t, failed.Err, common.CodeExtraction)
	s := schema.CompanyInfo()
	for _, f := range s.Fields {
		assert.Equal(t, f.Default, failed.Get(f.Name), f.Name)
	}

	assert.Equal(t, "Beta Oy", result.Records[2].Get("company_name"))
	assert.Equal(t, uint32(3), result.Stats.Matched)
	assert.Equal(t, uint32(2), result.Stats.Succeeded)
	assert.Equal(t, uint32(1), result.Stats.Failed)
	assert.Positive(t, result.Stats.Fallbacks)
}

func TestProcessBatch_OutOfDomainEnumBecomesUnknown(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, "report.docx")
	b := newBatch(scripted(map[string]map[string]any{
		"report.docx": {"company_name": "Gamma", "ai_maturity_level": "Maybe"},
	}))

	result, err := b.ProcessBatch(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())

	rec := result.Records[0]
	assert.Equal(t, constants.FallbackValue, rec.Get("ai_maturity_level"))
	assert.Contains(t, rec.Fallbacks, entity.Fallback{
		Field:    "ai_maturity_level",
		Original: "Maybe",
		Value:    constants.FallbackValue,
		Reason:   "not_in_enum",
	})
}

func TestProcessBatch_WorkersKeepDiscoveryOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	names := []string{"01.docx", "02.docx", "03.docx", "04.docx", "05.docx", "06.docx", "07.docx", "08.docx"}
	writeDocs(t, dir, names...)

	var inFlight, peak atomic.Int32
	ext := extract.Func(func(ctx context.Context, doc entity.Document, _ *schema.Schema) (extract.RawResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		// later documents finish first
		delay := time.Duration(len(names)-int(doc.Name[1]-'0')) * 5 * time.Millisecond
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return extract.RawResult{}, ctx.Err()
		}
		return extract.RawResult{Data: map[string]any{"company_name": doc.Name}}, nil
	})

	result, err := newBatch(ext, WithWorkers(3)).ProcessBatch(context.Background(), dir)
	require.NoError(t, err)

	var got []string
	for _, rec := range result.Records {
		got = append(got, rec.Get("company_name"))
	}
	assert.Equal(t, names, got)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, uint32(len(names)), result.Stats.Succeeded)
}

func TestProcessBatch_MissingDirectoryIsConfigError(t *testing.T) {
	b := newBatch(scripted(nil))
	_, err := b.ProcessBatch(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestProcessBatch_EmptyDirectory(t *testing.T) {
	result, err := newBatch(scripted(nil)).ProcessBatch(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, result.Len())
}

func TestProcessDocument_TimeoutYieldsDefaults(t *testing.T) {
	ext := extract.Func(func(ctx context.Context, _ entity.Document, _ *schema.Schema) (extract.RawResult, error) {
		<-ctx.Done()
		return extract.RawResult{}, ctx.Err()
	})
	p := NewProcessor(ext, schema.CompanyInfo(), nil)
	p.Timeout = 20 * time.Millisecond

	rec := p.ProcessDocument(context.Background(), uuid.Nil, entity.Document{Path: "in/slow.docx", Name: "slow.docx"})
	assert.True(t, rec.Failed())
	assert.Contains(t, rec.Err, common.CodeExtraction)
	assert.Equal(t, constants.DefaultValue, rec.Get("company_name"))
}

func TestProcessBatch_ReuseSkipsUnchangedDocuments(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenInMemory(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })

	dir := t.TempDir()
	writeDocs(t, dir, "a.docx")

	var calls atomic.Int32
	answers := scripted(map[string]map[string]any{"a.docx": acmeAnswer()})
	ext := extract.Func(func(ctx context.Context, doc entity.Document, s *schema.Schema) (extract.RawResult, error) {
		calls.Add(1)
		return answers(ctx, doc, s)
	})

	proc := NewProcessor(ext, schema.CompanyInfo(), nil)
	proc.Jobs = repository.NewExtractJobRepository(db, nil)
	proc.Reuse = true
	runs := repository.NewRunRepository(db, nil)
	b := NewBatch(ingest.NewFSDiscoverer(ingest.DefaultOptions(), nil), proc, nil, WithRuns(runs))

	first, err := b.ProcessBatch(ctx, dir)
	require.NoError(t, err)
	require.NotEmpty(t, first.RunID)
	second, err := b.ProcessBatch(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, constants.JobStatusReused, second.Records[0].Status)
	assert.Equal(t, uint32(1), second.Stats.Reused)
	if diff := cmp.Diff(first.Records[0].Values, second.Records[0].Values); diff != "" {
		t.Errorf("reused values differ (-first +second):\n%s", diff)
	}

	// changed content is extracted again
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.docx"), []byte("edited"), 0o644))
	third, err := b.ProcessBatch(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, constants.JobStatusOK, third.Records[0].Status)

	jobs, err := proc.Jobs.ListByRun(ctx, uuid.MustParse(third.RunID))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, string(constants.JobStatusOK), jobs[0].Status)
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memArchive) Put(_ context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	if m.err != nil {
		return storage.ObjectInfo{}, m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = b
	return storage.ObjectInfo{Key: key, Size: int64(len(b)), ContentType: opt.ContentType}, nil
}

func TestRunner_WritesWorkbookArchivesAndCounts(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, "a.docx", "b.docx")
	out := filepath.Join(t.TempDir(), "output", "report.xlsx")

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	b := newBatch(scripted(map[string]map[string]any{"a.docx": acmeAnswer()}))
	b.proc.Metrics = m

	archive := &memArchive{}
	var console bytes.Buffer
	r := &Runner{Batch: b, Output: out, Archive: archive, Metrics: m, Console: &console}

	result, err := r.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Len())

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, archive.objects, 1)
	for key, body := range archive.objects {
		assert.Regexp(t, `^reports/[0-9a-f-]{36}\.xlsx$`, key)
		assert.Equal(t, written, body)
	}
	assert.Contains(t, console.String(), "2 documents: 1 ok, 0 reused, 1 failed")

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "consult_documents_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			counts[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"OK": 1, "FAILED": 1}, counts)
}

func TestRunner_ArchiveFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, "a.docx")
	out := filepath.Join(t.TempDir(), "report.xlsx")
	r := &Runner{
		Batch:   newBatch(scripted(nil)),
		Output:  out,
		Archive: &memArchive{err: errors.New("bucket gone")},
	}
	_, err := r.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestRunner_UnwritableOutputIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, "a.docx")
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	r := &Runner{Batch: newBatch(scripted(nil)), Output: filepath.Join(blocker, "report.xlsx")}
	_, err := r.Run(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrOutputWrite))
	assert.True(t, common.IsFatal(err))
}

func TestRunner_WatchRerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, "a.docx")
	out := filepath.Join(t.TempDir(), "report.xlsx")

	var calls atomic.Int32
	ext := extract.Func(func(_ context.Context, doc entity.Document, _ *schema.Schema) (extract.RawResult, error) {
		calls.Add(1)
		return extract.RawResult{Data: map[string]any{"company_name": doc.Name}}, nil
	})
	r := &Runner{Batch: newBatch(ext), Output: out}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, dir, ingest.DefaultOptions(), 50*time.Millisecond) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	// the watcher starts after the first run, so keep touching until a rerun sees b.docx
	b := filepath.Join(dir, "b.docx")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(b, []byte("docx:b"), 0o644)
		return calls.Load() >= 3
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestProcessBatch_PanickingExtractorYieldsDefaults(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeDocs(t, dir, "a.docx", "b.docx", "c.docx")
	answers := scripted(map[string]map[string]any{"a.docx": acmeAnswer(), "c.docx": acmeAnswer()})
	ext := extract.Func(func(ctx context.Context, doc entity.Document, s *schema.Schema) (extract.RawResult, error) {
		if doc.Name == "b.docx" {
			panic("decoder blew up")
		}
		return answers(ctx, doc, s)
	})

	result, err := newBatch(ext, WithWorkers(2)).ProcessBatch(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 3, result.Len())

	failed := result.Records[1]
	assert.True(t, failed.Failed())
	assert.Contains(t, failed.Err, common.CodeExtraction)
	assert.Contains(t, failed.Err, "decoder blew up")
	assert.Equal(t, constants.DefaultValue, failed.Get("company_name"))
	assert.Equal(t, constants.JobStatusOK, result.Records[0].Status)
	assert.Equal(t, constants.JobStatusOK, result.Records[2].Status)
	assert.Equal(t, uint32(1), result.Stats.Failed)
}

// brokenJobs panics on every call.
type brokenJobs struct {
	repository.ExtractJobRepository
}

func TestProcessBatch_PanicOutsideExtractorIsContained(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenInMemory(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })

	dir := t.TempDir()
	writeDocs(t, dir, "a.docx", "b.docx")
	proc := NewProcessor(scripted(map[string]map[string]any{"a.docx": acmeAnswer()}), schema.CompanyInfo(), nil)
	proc.Jobs = brokenJobs{}
	b := NewBatch(ingest.NewFSDiscoverer(ingest.DefaultOptions(), nil), proc, nil,
		WithRuns(repository.NewRunRepository(db, nil)))

	result, err := b.ProcessBatch(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())
	for _, rec := range result.Records {
		assert.True(t, rec.Failed(), rec.Source)
		assert.Contains(t, rec.Err, common.CodeExtraction)
		assert.Equal(t, constants.DefaultValue, rec.Get("country"))
	}
	assert.Equal(t, "a.docx", filepath.Base(result.Records[0].Source))
	assert.Equal(t, uint32(2), result.Stats.Failed)
}

func TestRunner_UnwritableOutputClosesRunAsFailed(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenInMemory(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })

	dir := t.TempDir()
	writeDocs(t, dir, "a.docx")
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	runs := repository.NewRunRepository(db, nil)
	r := &Runner{
		Batch:  newBatch(scripted(nil), WithRuns(runs)),
		Output: filepath.Join(blocker, "report.xlsx"),
	}
	result, err := r.Run(ctx, dir)
	require.True(t, errors.Is(err, common.ErrOutputWrite))

	run, err := runs.Get(ctx, uuid.MustParse(result.RunID))
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), run.Status)
	assert.NotNil(t, run.FinishedAt)
	assert.Nil(t, run.OutputPath)
	assert.Equal(t, 1, run.Documents)
}

func TestRunner_WrittenOutputClosesRunAsDone(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenInMemory(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })

	dir := t.TempDir()
	writeDocs(t, dir, "a.docx")
	out := filepath.Join(t.TempDir(), "report.xlsx")
	runs := repository.NewRunRepository(db, nil)
	r := &Runner{Batch: newBatch(scripted(map[string]map[string]any{"a.docx": acmeAnswer()}), WithRuns(runs)), Output: out}

	result, err := r.Run(ctx, dir)
	require.NoError(t, err)

	run, err := runs.Get(ctx, uuid.MustParse(result.RunID))
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusRunDone), run.Status)
	require.NotNil(t, run.OutputPath)
	assert.Equal(t, out, *run.OutputPath)
}
