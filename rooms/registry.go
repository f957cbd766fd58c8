package rooms

import (
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"github.com/suryanshishere/real-time-interaction-module/redis"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const eventPrefix = "events:poll:vote:"

// Subscriber is a live connection that joined a poll's room.
type Subscriber interface {
	SendVoteUpdate(code string, tally []int64) error
}

// Registry maps session codes to the set of currently connected
// subscribers. It is an explicit object, created at service start and
// closed at shutdown, never ambient state. When the shared redis client is
// configured, broadcasts travel through a pub/sub channel per room so the
// fan-out survives multiple service processes; otherwise delivery is direct
// and in-process.
type Registry struct {
	mtx    sync.Mutex
	rooms  map[string]map[Subscriber]struct{}
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRegistry() *Registry {
	r := &Registry{
		rooms: make(map[string]map[Subscriber]struct{}),
		done:  make(chan struct{}),
	}
	if redis.Client != nil {
		r.pubsub = redis.Client.Subscribe(redis.Ctx)
		go r.consume()
	}
	return r
}

func (r *Registry) consume() {
	ch := r.pubsub.Channel()
	for {
		select {
		case <-r.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			tally := []int64{}
			if err := json.UnmarshalFromString(msg.Payload, &tally); err != nil {
				log.Errorf("redis, err=%v", err)
				continue
			}
			r.deliver(strings.TrimPrefix(msg.Channel, eventPrefix), tally)
		}
	}
}

// Join subscribes a connection to a room. Idempotent, joining twice has no
// additional effect.
func (r *Registry) Join(code string, sub Subscriber) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		room = make(map[Subscriber]struct{})
		r.rooms[code] = room
		if r.pubsub != nil {
			if err := r.pubsub.Subscribe(redis.Ctx, eventPrefix+code); err != nil {
				log.Errorf("redis, err=%v", err)
			}
		}
	}
	room[sub] = struct{}{}
}

// Leave removes a connection from one room, dropping the redis channel when
// the room empties.
func (r *Registry) Leave(code string, sub Subscriber) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.leaveLocked(code, sub)
}

// LeaveAll removes a connection from every room it joined. Called when the
// underlying connection closes so subscriber sets never accumulate stale
// entries.
func (r *Registry) LeaveAll(sub Subscriber) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for code := range r.rooms {
		r.leaveLocked(code, sub)
	}
}

func (r *Registry) leaveLocked(code string, sub Subscriber) {
	room, ok := r.rooms[code]
	if !ok {
		return
	}
	if _, ok = room[sub]; !ok {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(r.rooms, code)
		if r.pubsub != nil {
			if err := r.pubsub.Unsubscribe(redis.Ctx, eventPrefix+code); err != nil {
				log.Errorf("redis, err=%v", err)
			}
		}
	}
}

// Broadcast delivers the committed tally to every subscriber of the room.
// With redis configured it publishes and local delivery happens on the
// pub/sub consumer; without it delivery is direct.
func (r *Registry) Broadcast(code string, tally []int64) {
	if r.pubsub != nil {
		payload, err := json.MarshalToString(tally)
		if err != nil {
			log.Errorf("json, err=%v", err)
			return
		}
		if err = redis.Client.Publish(redis.Ctx, eventPrefix+code, payload).Err(); err != nil {
			log.Errorf("redis, err=%v", err)
		}
		return
	}
	r.deliver(code, tally)
}

// deliver fans out to the current subscriber snapshot, one goroutine per
// subscriber. A slow or failing subscriber never blocks the rest and never
// fails the originating vote.
func (r *Registry) deliver(code string, tally []int64) {
	r.mtx.Lock()
	subs := make([]Subscriber, 0, len(r.rooms[code]))
	for sub := range r.rooms[code] {
		subs = append(subs, sub)
	}
	r.mtx.Unlock()

	for _, sub := range subs {
		go func(sub Subscriber) {
			defer func() {
				if p := recover(); p != nil {
					log.Errorf("rooms, subscriber panic=%v", p)
				}
			}()
			if err := sub.SendVoteUpdate(code, tally); err != nil {
				log.Debugf("rooms, dropped update, err=%v", err)
			}
		}(sub)
	}
}

// Size reports the current subscriber count of a room.
func (r *Registry) Size(code string) int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.rooms[code])
}

// Close tears the registry down.
func (r *Registry) Close() error {
	close(r.done)
	if r.pubsub != nil {
		return r.pubsub.Close()
	}
	return nil
}
