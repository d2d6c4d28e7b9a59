// Package stream implements consumer-group stream brokers: Redis streams for
// production and an in-memory log with the same semantics for tests and local runs.
package stream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nikolayk812/cartflow/internal/port"
	"github.com/redis/go-redis/v9"
)

type RedisBroker struct {
	rdb redis.UniversalClient
}

func NewRedis(rdb redis.UniversalClient) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

// EnsureGroup creates the stream and group from the start of the log when
// either is missing. An existing group is not an error.
func (b *RedisBroker) EnsureGroup(ctx context.Context, stream, group string) error {
	if stream == "" || group == "" {
		return fmt.Errorf("stream or group is empty")
	}

	exists, err := b.groupExists(ctx, stream, group)
	if err != nil {
		return fmt.Errorf("groupExists: %w", err)
	}
	if exists {
		return nil
	}

	err = b.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("rdb.XGroupCreateMkStream: %w", err)
	}

	return nil
}

func (b *RedisBroker) groupExists(ctx context.Context, stream, group string) (bool, error) {
	n, err := b.rdb.Exists(ctx, stream).Result()
	if err != nil {
		return false, fmt.Errorf("rdb.Exists: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	groups, err := b.rdb.XInfoGroups(ctx, stream).Result()
	if err != nil {
		return false, fmt.Errorf("rdb.XInfoGroups: %w", err)
	}

	return slices.ContainsFunc(groups, func(g redis.XInfoGroup) bool {
		return strings.EqualFold(g.Name, group)
	}), nil
}

// ReadGroup reads entries never delivered to the group. A non-positive block
// returns immediately instead of waiting forever.
func (b *RedisBroker) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]port.Entry, error) {
	if block <= 0 {
		block = -1
	}

	res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rdb.XReadGroup: %w", err)
	}

	var entries []port.Entry
	for _, s := range res {
		for _, msg := range s.Messages {
			entries = append(entries, mapMessageToEntry(msg, 1))
		}
	}

	return entries, nil
}

// ClaimStale moves entries idle for at least minIdle to consumer and reports
// how many times each has been delivered.
func (b *RedisBroker) ClaimStale(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]port.Entry, error) {
	msgs, _, err := b.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rdb.XAutoClaim: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.XPendingExtCmd, len(msgs))
	_, err = b.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, msg := range msgs {
			cmds[i] = pipe.XPendingExt(ctx, &redis.XPendingExtArgs{
				Stream: stream,
				Group:  group,
				Start:  msg.ID,
				End:    msg.ID,
				Count:  1,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rdb.Pipelined XPendingExt: %w", err)
	}

	deliveries := make(map[string]int64, len(msgs))
	for _, cmd := range cmds {
		for _, p := range cmd.Val() {
			deliveries[p.ID] = p.RetryCount
		}
	}

	entries := make([]port.Entry, 0, len(msgs))
	for _, msg := range msgs {
		n := deliveries[msg.ID]
		if n == 0 {
			n = 1
		}
		entries = append(entries, mapMessageToEntry(msg, n))
	}

	return entries, nil
}

func (b *RedisBroker) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if err := b.rdb.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("rdb.XAck: %w", err)
	}
	return nil
}

func (b *RedisBroker) Delete(ctx context.Context, stream string, ids ...string) error {
	if err := b.rdb.XDel(ctx, stream, ids...).Err(); err != nil {
		return fmt.Errorf("rdb.XDel: %w", err)
	}
	return nil
}

func (b *RedisBroker) Append(ctx context.Context, stream string, fields []port.Field) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("fields is empty")
	}

	values := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		values = append(values, f.Name, f.Value)
	}

	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
	if err != nil {
		return "", fmt.Errorf("rdb.XAdd: %w", err)
	}

	return id, nil
}

// mapMessageToEntry sorts fields by name since the client returns them as a map.
func mapMessageToEntry(msg redis.XMessage, deliveries int64) port.Entry {
	fields := make([]port.Field, 0, len(msg.Values))
	for name, value := range msg.Values {
		fields = append(fields, port.Field{Name: name, Value: fmt.Sprint(value)})
	}
	slices.SortFunc(fields, func(a, b port.Field) int { return strings.Compare(a.Name, b.Name) })

	return port.Entry{ID: msg.ID, Fields: fields, Deliveries: deliveries}
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}
