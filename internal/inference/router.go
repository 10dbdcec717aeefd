// Package inference implements the wound-detection dispatch (spec.md
// §4.3): try the remote backend first, fall back to a local model, and
// otherwise return no detections. The router is a pure function of
// (image, configuration); it holds no session state.
package inference

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/n0remac/wound-gateway/internal/model"
	"github.com/n0remac/wound-gateway/internal/preprocess"
	"github.com/n0remac/wound-gateway/internal/workerpool"
)

// Config is the subset of process configuration the router needs.
type Config struct {
	RemoteURL     string
	RemoteKey     string
	RemoteTimeout time.Duration
	LocalEnabled  bool
	LocalWeights  string
	ConfidenceMin float64
}

// Router dispatches a decoded frame to the remote backend, then the local
// model, then gives up and returns an empty list — never an error for a
// backend-level failure, since spec.md §4.3 step 3/5 treats both as
// "log and return empty," not as an exception to propagate.
type Router struct {
	cfg    Config
	remote *remoteBackend
	local  *lazyLocalModel
	pool   *workerpool.Pool
	log    zerolog.Logger
}

// NewRouter builds a Router. remote is nil when cfg.RemoteURL is empty.
// pool is where the CPU-bound local model runs (SPEC_FULL §5: local
// inference is dispatched to the shared worker pool, never run inline on
// a session's own consumer goroutine); pool may be nil, in which case
// local inference runs synchronously on the caller's goroutine — used by
// tests that don't care about dispatch.
func NewRouter(cfg Config, pool *workerpool.Pool, logger zerolog.Logger) *Router {
	r := &Router{cfg: cfg, pool: pool, log: logger}
	if cfg.RemoteURL != "" {
		r.remote = newRemoteBackend(cfg.RemoteURL, cfg.RemoteKey, cfg.RemoteTimeout)
	}
	if cfg.LocalEnabled {
		r.local = newLazyLocalModel(cfg.LocalWeights)
	}
	return r
}

// newRouterWithLocal builds a Router around an already-constructed
// LocalModel, bypassing the lazy cascade loader. Used by tests so S3/S4
// style fallback scenarios don't need a real cascade XML on disk.
func newRouterWithLocal(cfg Config, pool *workerpool.Pool, logger zerolog.Logger, local LocalModel) *Router {
	r := &Router{cfg: cfg, pool: pool, log: logger}
	if cfg.RemoteURL != "" {
		r.remote = newRemoteBackend(cfg.RemoteURL, cfg.RemoteKey, cfg.RemoteTimeout)
	}
	if local != nil {
		l := newLazyLocalModel("")
		l.loaded = true
		l.model = local
		r.local = l
	}
	return r
}

// Infer returns the filtered detection list for img. Every failure,
// including a failure to JPEG-encode img for the remote call, is logged
// and absorbed here: a remote failure falls back to the local model, and
// a local failure yields ([], nil). The returned error is always nil.
func (r *Router) Infer(ctx context.Context, img preprocess.Image) ([]model.Detection, error) {
	if r.remote != nil {
		dets, err := r.remote.detect(ctx, img, r.cfg.ConfidenceMin)
		if err == nil {
			return filterByConfidence(dets, r.cfg.ConfidenceMin), nil
		}
		r.log.Warn().Err(err).Msg("remote inference failed, falling back")
	}

	if r.local == nil {
		return nil, nil
	}

	local, err := r.local.get()
	if err != nil {
		r.log.Warn().Err(err).Msg("local model unavailable")
		return nil, nil
	}

	dets, err := r.runLocal(local, img)
	if err != nil {
		r.log.Warn().Err(err).Msg("local inference failed")
		return nil, nil
	}
	return filterByConfidence(dets, r.cfg.ConfidenceMin), nil
}

// localResult carries a dispatched local.Detect outcome back across the
// worker pool's task channel.
type localResult struct {
	dets []model.Detection
	err  error
}

// runLocal dispatches the CPU-bound cascade pass onto r.pool, blocking
// the caller until it completes, rather than running it inline on the
// per-session consumer goroutine.
func (r *Router) runLocal(local LocalModel, img preprocess.Image) ([]model.Detection, error) {
	if r.pool == nil {
		return local.Detect(img)
	}
	resultCh := make(chan localResult, 1)
	r.pool.Submit(func() {
		dets, err := local.Detect(img)
		resultCh <- localResult{dets: dets, err: err}
	})
	res := <-resultCh
	return res.dets, res.err
}

func filterByConfidence(dets []model.Detection, threshold float64) []model.Detection {
	out := make([]model.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}
