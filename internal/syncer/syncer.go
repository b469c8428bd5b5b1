// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Syncer prowadzi przebiegi silnika w tle: od razu po Start,
// potem co interval (0 = jednorazowo). Używany przez tray i `serve --auto-sync`.
type Syncer struct {
	log      zerolog.Logger
	engine   *Engine
	session  string
	source   string
	mu       sync.Mutex // ochrona sekcji krytycznych
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	interval time.Duration
	// pauza po nieudanym pobraniu strony, zanim spróbujemy ponownie
	retryPause time.Duration
	last       *StepResult
	lastErr    error
	onStep     func(*StepResult)
}

func New(log zerolog.Logger, engine *Engine, session, source string) *Syncer {
	return &Syncer{log: log, engine: engine, session: session, source: source, retryPause: 5 * time.Second}
}

// OnStep - callback po każdej stronie (np. tooltip w trayu)
func (s *Syncer) OnStep(fn func(*StepResult)) {
	s.mu.Lock()
	s.onStep = fn
	s.mu.Unlock()
}

func (s *Syncer) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// RunToCompletion woła Sync/Continue aż przebieg się skończy
func (s *Syncer) RunToCompletion(ctx context.Context, fullSync bool) (*StepResult, error) {
	res, err := s.engine.Sync(ctx, s.session, fullSync, s.source)
	for {
		s.notify(res)
		if err != nil || res == nil || res.IsComplete {
			s.remember(res, err)
			return res, err
		}
		if ctx.Err() != nil {
			// checkpoint zostaje, następny Start wznowi od tej strony
			s.remember(res, ctx.Err())
			return res, ctx.Err()
		}
		if res.Status == StatusInProgress && s.pageFailed(res) {
			select {
			case <-ctx.Done():
				continue
			case <-time.After(s.retryPause):
			}
		}
		res, err = s.engine.Continue(ctx, s.session, res.ContinuationToken)
	}
}

func (s *Syncer) pageFailed(res *StepResult) bool {
	st, err := s.engine.State(context.Background(), s.session)
	return err == nil && st.PageFailures > 0 && res.Page == st.Page
}

func (s *Syncer) Start(ctx context.Context, fullSync bool) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Info().Str("session", s.session).Bool("full_sync", fullSync).Msg("Syncer: start")
	go s.loop(ctx, fullSync)
	return nil
}

func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("Syncer: stop")
}

func (s *Syncer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Last - wynik ostatniego kroku
func (s *Syncer) Last() (*StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

func (s *Syncer) loop(ctx context.Context, fullSync bool) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	// pierwszy strzał od razu
	s.runOnce(ctx, fullSync)

	s.mu.Lock()
	every := s.interval
	s.mu.Unlock()
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Syncer: koniec pętli")
			return
		case <-ticker.C:
			// kolejne przebiegi okresowe są przyrostowe
			s.runOnce(ctx, false)
		}
	}
}

func (s *Syncer) runOnce(ctx context.Context, fullSync bool) {
	res, err := s.RunToCompletion(ctx, fullSync)
	switch {
	case errors.Is(err, context.Canceled):
		s.log.Info().Msg("Syncer: przerwano, checkpoint zachowany")
	case err != nil:
		s.log.Error().Err(err).Msg("Syncer: przebieg zakończony z błędem")
	case res != nil:
		s.log.Info().Int("added", res.AddedCount).Int("updated", res.UpdatedCount).Int("processed", res.ProcessedCount).Msg("Syncer: przebieg zakończony")
	}
}

func (s *Syncer) notify(res *StepResult) {
	s.mu.Lock()
	fn := s.onStep
	s.mu.Unlock()
	if fn != nil && res != nil {
		fn(res)
	}
}

func (s *Syncer) remember(res *StepResult, err error) {
	s.mu.Lock()
	s.last, s.lastErr = res, err
	s.mu.Unlock()
}
