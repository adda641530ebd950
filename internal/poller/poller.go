package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task es el trabajo periódico. Debe respetar ctx: al detener el poller el
// contexto se cancela y las peticiones en curso deben abortarse.
type Task func(ctx context.Context)

// Poller ejecuta una tarea al iniciar y luego cada intervalo, hasta Stop.
// Nunca hay dos ejecuciones a la vez: si una sigue en curso cuando llega
// el siguiente tick (incluida la ejecución inicial), el tick se salta.
type Poller struct {
	name     string
	interval time.Duration
	task     Task

	mu        sync.Mutex
	scheduler *cron.Cron
	cancel    context.CancelFunc
	initial   sync.WaitGroup
	busy      sync.Mutex
}

func New(name string, interval time.Duration, task Task) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		task:     task,
	}
}

// Running indica si el poller está activo.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduler != nil
}

// Start programa la tarea y la ejecuta una vez de inmediato. Llamar Start
// sobre un poller activo no hace nada.
func (p *Poller) Start(parent context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.scheduler != nil {
		return nil
	}
	if p.interval <= 0 {
		return fmt.Errorf("poller %s: interval must be positive", p.name)
	}

	ctx, cancel := context.WithCancel(parent)
	logger := cronLogger{log: zap.L().Sugar().With("poller", p.name)}

	scheduler := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))
	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := scheduler.AddFunc(spec, func() { p.run(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("poller %s: failed to schedule: %w", p.name, err)
	}

	p.scheduler = scheduler
	p.cancel = cancel
	scheduler.Start()

	p.initial.Add(1)
	go func() {
		defer p.initial.Done()
		p.run(ctx)
	}()

	zap.L().Info("poller started",
		zap.String("poller", p.name),
		zap.Duration("interval", p.interval),
	)
	return nil
}

// Stop cancela las peticiones en curso y espera a que termine la ejecución
// activa. Después de Stop la tarea no vuelve a correr hasta un nuevo Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	scheduler, cancel := p.scheduler, p.cancel
	p.scheduler, p.cancel = nil, nil
	p.mu.Unlock()

	if scheduler == nil {
		return
	}

	cancel()
	<-scheduler.Stop().Done()
	p.initial.Wait()

	zap.L().Info("poller stopped", zap.String("poller", p.name))
}

func (p *Poller) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !p.busy.TryLock() {
		zap.L().Debug("poller tick skipped, previous run still active", zap.String("poller", p.name))
		return
	}
	defer p.busy.Unlock()
	p.task(ctx)
}

// cronLogger adapta zap a la interfaz de logging de cron.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
