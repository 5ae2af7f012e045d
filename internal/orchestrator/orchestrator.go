// Package orchestrator implements the Ingest Orchestrator (§4.4): it wires
// the Platform Client to the Game Repository and coalesces concurrent
// subscriptions for the same (user, platform) key into a single underlying
// ingest, fanning progress out to every subscriber.
package orchestrator

import (
	"context"
	"sync"

	"github.com/ayarotskyi/neochess/internal/chesscom"
	"github.com/ayarotskyi/neochess/internal/domain"
	"github.com/ayarotskyi/neochess/internal/logger"
	"github.com/ayarotskyi/neochess/internal/repository"
)

// subscriberBuffer bounds how far a subscriber may lag behind the producer
// before it is dropped with ErrSubscriberLagged instead of blocking ingest
// for every other subscriber.
const subscriberBuffer = 1000

// ProgressEvent is one update delivered to a subscription. Fraction is in
// [0,1] and non-decreasing across a single subscription; Done marks the
// final event (success or failure), after which the channel is closed.
type ProgressEvent struct {
	Fraction float64
	Done     bool
	Err      error
}

// ErrSubscriberLagged is delivered (as a terminal event) to a subscriber
// whose buffer filled before it could drain progress updates.
var ErrSubscriberLagged = errSubscriberLagged{}

type errSubscriberLagged struct{}

func (errSubscriberLagged) Error() string { return "subscriber lagged behind ingest progress" }

type key struct {
	user     string
	platform domain.PlatformName
}

// Orchestrator is the coalescing subscription layer in front of the Game
// Repository and Platform Client.
type Orchestrator struct {
	repo     repository.GameRepository
	platform chesscom.PlatformClient

	mu       sync.Mutex
	inflight map[key]*broadcaster

	log *logger.Logger
}

// New wires an Orchestrator over the given repository and platform client.
func New(repo repository.GameRepository, platform chesscom.PlatformClient) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		platform: platform,
		inflight: make(map[key]*broadcaster),
		log:      logger.Default().WithPrefix("orchestrator"),
	}
}

// SubscribeUpdate returns a channel of progress events for ingesting user's
// games from platform. If an ingest for the same (user, platform) is already
// running, the returned channel joins that ingest instead of starting a
// second one. The channel is closed after its terminal event.
func (o *Orchestrator) SubscribeUpdate(ctx context.Context, user string, platform domain.PlatformName) (<-chan ProgressEvent, error) {
	k := key{user: user, platform: platform}

	o.mu.Lock()
	b, running := o.inflight[k]
	if !running {
		b = newBroadcaster()
		o.inflight[k] = b
	}
	// subscribe() and the runIngest launch happen while o.mu is still held,
	// so a subscriber can never land between this ingest's terminal event
	// (evict, under the same lock) and its own subscribe call: it either
	// joins the broadcaster before closeAll runs, or subscribe() sees the
	// already-terminated broadcaster and returns a closed channel.
	sub := b.subscribe()
	if !running {
		o.log.Info("starting ingest: user=%s platform=%s", user, platform)
		// Deliberately detached from ctx: one subscriber disconnecting must
		// not cancel the ingest other subscribers are waiting on.
		go o.runIngest(context.Background(), k, b)
	}
	o.mu.Unlock()

	return sub, nil
}

func (o *Orchestrator) runIngest(ctx context.Context, k key, b *broadcaster) {
	terminal := func(ev ProgressEvent) {
		o.evict(k)
		b.publish(ev)
		b.closeAll(ev)
	}

	latest, err := o.repo.GetLatestGameTimestamp(ctx, k.platform, k.user)
	if err != nil {
		o.log.Error("failed to read latest game timestamp: user=%s err=%v", k.user, err)
		terminal(ProgressEvent{Err: err, Done: true})
		return
	}

	count, stream, err := o.platform.FetchGames(ctx, k.user, latest)
	if err != nil {
		o.log.Error("failed to fetch games: user=%s err=%v", k.user, err)
		terminal(ProgressEvent{Err: err, Done: true})
		return
	}

	denom := count
	if denom < 1 {
		denom = 1
	}

	progress := make(chan struct{}, 1000)
	var consumerWg sync.WaitGroup
	consumerWg.Add(1)
	finalFraction := 0.0
	go func() {
		defer consumerWg.Done()
		processed := 0
		for range progress {
			processed++
			finalFraction = float64(processed) / float64(denom)
			b.publish(ProgressEvent{Fraction: finalFraction})
		}
	}()

	_, err = o.repo.StoreGames(ctx, k.platform, k.user, stream, progress)
	close(progress)
	consumerWg.Wait()

	if err != nil {
		o.log.Error("ingest failed: user=%s err=%v", k.user, err)
		terminal(ProgressEvent{Err: err, Done: true})
		return
	}

	o.log.Info("ingest completed: user=%s", k.user)
	// finalFraction stays 0 when no batches were consumed (an empty history
	// yields no progress items, §8 S1); property 5's final-1.0 guarantee is
	// scoped to archive_count > 0, where finalFraction does reach 1.0.
	terminal(ProgressEvent{Fraction: finalFraction, Done: true})
}

func (o *Orchestrator) evict(k key) {
	o.mu.Lock()
	delete(o.inflight, k)
	o.mu.Unlock()
}

// broadcaster fans one producer's events out to every subscriber that has
// joined the in-flight ingest it belongs to. There is no stdlib multi-
// consumer broadcast channel, so this is the small hand-rolled type the
// coalescing cache is built on.
type broadcaster struct {
	mu       sync.Mutex
	subs     []chan ProgressEvent
	done     bool
	terminal ProgressEvent
}

func newBroadcaster() *broadcaster {
	return &broadcaster{}
}

// subscribe joins the broadcaster. If the ingest it belongs to has already
// terminated (closeAll already ran), the caller still attached before the
// SubscribeUpdate caller released o.mu, so this returns a channel pre-loaded
// with the cached terminal event instead of one nothing will ever publish
// to or close.
func (b *broadcaster) subscribe() chan ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		ch := make(chan ProgressEvent, 1)
		ch <- b.terminal
		close(ch)
		return ch
	}

	ch := make(chan ProgressEvent, subscriberBuffer)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *broadcaster) publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, ch := range b.subs {
		select {
		case ch <- ev:
			kept = append(kept, ch)
		default:
			// The buffer is full: discard the oldest undelivered event to make
			// room for the lag error, then end this subscription.
			select {
			case <-ch:
			default:
			}
			ch <- ProgressEvent{Err: ErrSubscriberLagged, Done: true}
			close(ch)
		}
	}
	b.subs = kept
}

func (b *broadcaster) closeAll(terminal ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.done = true
	b.terminal = terminal
}
