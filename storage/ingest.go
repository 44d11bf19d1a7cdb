package storage

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"cb-sidebar-logger/model"
)

// IngestConfig задаёт параметры очереди инжеста.
type IngestConfig struct {
	ChanBuffer    int
	StatsLogEvery time.Duration
}

// Ingestor — очередь с единственным писателем между колбэком транспорта
// и журналом событий. Колбэк только кладёт событие в канал, фоновая
// горутина дописывает в журнал; порядок прихода сохраняется.
type Ingestor struct {
	input   chan model.Event
	config  IngestConfig
	sink    appender
	stored  func(model.Event)
	dropped atomic.Uint64
}

type appender interface {
	Append(model.Event) model.Event
}

// NewIngestor создаёт очередь и запускает фоновую запись в журнал.
// Колбэк stored (необязательный) вызывается для каждого сохранённого
// события уже с назначенным ID.
func NewIngestor(ctx context.Context, store *EventStore, cfg IngestConfig, stored func(model.Event)) *Ingestor {
	return newIngestor(ctx, store, cfg, stored)
}

// Enqueue пытается поставить событие в очередь; при переполнении
// возвращает false.
func (ing *Ingestor) Enqueue(ev model.Event) bool {
	select {
	case ing.input <- ev:
		return true
	default:
		dropped := ing.dropped.Add(1)
		if dropped%100 == 0 {
			log.Printf("инжест: очередь заполнена, всего отброшено %d событий", dropped)
		}
		return false
	}
}

// Dropped возвращает число событий, отброшенных из-за переполнения.
func (ing *Ingestor) Dropped() uint64 {
	return ing.dropped.Load()
}

func (ing *Ingestor) run(ctx context.Context) {
	statsTicker := time.NewTicker(ing.config.StatsLogEvery)
	defer statsTicker.Stop()

	var (
		totalStored    uint64
		intervalStored uint64
	)

	for {
		select {
		case <-ctx.Done():
			log.Printf("инжест: контекст отменён, всего сохранено событий = %d", totalStored)
			return
		case <-statsTicker.C:
			log.Printf(
				"инжест: сохранено %d событий за %s (всего %d)",
				intervalStored, ing.config.StatsLogEvery, totalStored,
			)
			intervalStored = 0
		case ev := <-ing.input:
			stored := ing.sink.Append(ev)
			totalStored++
			intervalStored++

			if ing.stored != nil {
				ing.stored(stored)
			}
		}
	}
}

func newIngestor(ctx context.Context, sink appender, cfg IngestConfig, stored func(model.Event)) *Ingestor {
	if cfg.ChanBuffer <= 0 {
		cfg.ChanBuffer = 1024
	}
	if cfg.StatsLogEvery <= 0 {
		cfg.StatsLogEvery = 5 * time.Minute
	}

	ing := &Ingestor{
		input:  make(chan model.Event, cfg.ChanBuffer),
		config: cfg,
		sink:   sink,
		stored: stored,
	}

	go ing.run(ctx)

	return ing
}
