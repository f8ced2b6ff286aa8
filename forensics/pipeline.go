package forensics

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rogue-hunter/roguehunter/model"
	"github.com/rogue-hunter/roguehunter/osadapter"
)

// Store is the persistence surface the pipeline needs. storage.DB
// implements this.
type Store interface {
	CreateCapture(c model.ForensicCapture) (int64, error)
	UpdateCaptureStatus(captureID int64, traceSave, traceDecode, logs model.CaptureStatus) error
	InsertTraceDocument(captureID int64, doc model.TraceDocument) error
	InsertLogEntries(captureID int64, entries []model.LogEntry) error
	InsertBufferContext(bc model.BufferContext) error
}

// Pipeline orchestrates one forensic capture end to end (§4.5): debounce,
// concurrent trace-save/log-query, parse, store, cleanup.
type Pipeline struct {
	store      Store
	trace      osadapter.TraceTool
	logs       osadapter.LogTool
	runtimeDir string
	logSeconds int
	logPredicate string
	debounce   time.Duration

	mu          sync.Mutex
	lastCapture time.Time
}

// NewPipeline returns a Pipeline wired to the given tools and store.
func NewPipeline(store Store, trace osadapter.TraceTool, logs osadapter.LogTool, runtimeDir string, logSeconds int, logPredicate string, debounce time.Duration) *Pipeline {
	return &Pipeline{
		store:        store,
		trace:        trace,
		logs:         logs,
		runtimeDir:   runtimeDir,
		logSeconds:   logSeconds,
		logPredicate: logPredicate,
		debounce:     debounce,
	}
}

// Capture runs one full forensic capture triggered by the tracker. It is
// safe to call from a fire-and-forget goroutine; it must never be called
// on the sampling loop's own goroutine (§5).
func (p *Pipeline) Capture(ctx context.Context, eventID int64, trigger string, frozen model.BufferContents) {
	p.mu.Lock()
	if !p.lastCapture.IsZero() && time.Since(p.lastCapture) < p.debounce {
		p.mu.Unlock()
		log.Printf("roguehunter: forensics: debounced capture for event %d (trigger=%s)", eventID, trigger)
		return
	}
	p.lastCapture = time.Now()
	p.mu.Unlock()

	tempDir, err := os.MkdirTemp(p.runtimeDir, "roguehunter-forensics-*")
	if err != nil {
		log.Printf("roguehunter: forensics: create temp dir: %v", err)
		return
	}
	defer os.RemoveAll(tempDir)

	captureID, err := p.store.CreateCapture(model.ForensicCapture{
		EventID:    eventID,
		CapturedAt: nowSeconds(),
		Trigger:    trigger,
	})
	if err != nil {
		log.Printf("roguehunter: forensics: create capture row: %v", err)
		return
	}

	var traceSaveStatus, traceDecodeStatus, logsStatus model.CaptureStatus

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		traceSaveStatus, traceDecodeStatus = p.captureTrace(gctx, captureID, tempDir)
		return nil
	})
	g.Go(func() error {
		logsStatus = p.captureLogs(gctx, captureID)
		return nil
	})
	// Errors are captured per-step above; the group itself never fails
	// since each goroutine absorbs its own error for isolation (§4.5 step 4).
	_ = g.Wait()

	if err := p.storeBufferContext(captureID, frozen); err != nil {
		log.Printf("roguehunter: forensics: store buffer context for capture %d: %v", captureID, err)
	}

	if err := p.store.UpdateCaptureStatus(captureID, traceSaveStatus, traceDecodeStatus, logsStatus); err != nil {
		log.Printf("roguehunter: forensics: update capture status for capture %d: %v", captureID, err)
	}

	log.Printf("roguehunter: forensics: capture %d complete (event=%d trigger=%s trace_save=%s trace_decode=%s logs=%s)",
		captureID, eventID, trigger, traceSaveStatus, traceDecodeStatus, logsStatus)
}

func (p *Pipeline) captureTrace(ctx context.Context, captureID int64, tempDir string) (model.CaptureStatus, model.CaptureStatus) {
	outputPath := filepath.Join(tempDir, "trace-"+uuid.NewString()+".trace")
	if err := p.trace.Save(ctx, outputPath); err != nil {
		if isPermissionError(err) {
			log.Printf("roguehunter: forensics: trace save denied (sudo non-interactive?) for capture %d: %v", captureID, err)
		} else {
			log.Printf("roguehunter: forensics: trace save failed for capture %d: %v", captureID, err)
		}
		return model.CaptureFailed, model.CaptureFailed
	}
	defer os.Remove(outputPath)

	if _, err := os.Stat(outputPath); err != nil {
		log.Printf("roguehunter: forensics: trace save produced no output for capture %d: %v", captureID, err)
		return model.CaptureFailed, model.CaptureFailed
	}

	text, err := p.trace.Decode(ctx, outputPath)
	if err != nil {
		log.Printf("roguehunter: forensics: trace decode failed for capture %d: %v", captureID, err)
		return model.CaptureSuccess, model.CaptureFailed
	}

	doc := ParseTrace(text)
	if err := p.store.InsertTraceDocument(captureID, doc); err != nil {
		log.Printf("roguehunter: forensics: store trace document for capture %d: %v", captureID, err)
		return model.CaptureSuccess, model.CaptureFailed
	}
	return model.CaptureSuccess, model.CaptureSuccess
}

func (p *Pipeline) captureLogs(ctx context.Context, captureID int64) model.CaptureStatus {
	data, err := p.logs.Query(ctx, p.logSeconds, p.logPredicate)
	if err != nil {
		log.Printf("roguehunter: forensics: log query failed for capture %d: %v", captureID, err)
		return model.CaptureFailed
	}
	entries := ParseLogsNDJSON(data)
	for i := range entries {
		entries[i].CaptureID = captureID
	}
	if err := p.store.InsertLogEntries(captureID, entries); err != nil {
		log.Printf("roguehunter: forensics: store log entries for capture %d: %v", captureID, err)
		return model.CaptureFailed
	}
	return model.CaptureSuccess
}

func (p *Pipeline) storeBufferContext(captureID int64, frozen model.BufferContents) error {
	culprits := IdentifyCulprits(frozen)
	peakScore := 0
	for _, s := range frozen.Samples {
		if s.MaxScore > peakScore {
			peakScore = s.MaxScore
		}
	}
	return p.store.InsertBufferContext(model.BufferContext{
		CaptureID:   captureID,
		SampleCount: len(frozen.Samples),
		PeakScore:   peakScore,
		Culprits:    culprits,
	})
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || strings.Contains(err.Error(), "sudo") || strings.Contains(err.Error(), "permission")
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
