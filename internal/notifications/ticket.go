package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Browsers cannot set an Authorization header on a websocket dial, so the
// upgrade is authenticated with a short-lived single-use ticket minted over
// the regular authenticated API.

const ticketTTL = 30 * time.Second

// ErrInvalidTicket is returned for unknown, expired, or already-used tickets.
var ErrInvalidTicket = errors.New("invalid websocket ticket")

// TicketStore mints and redeems websocket tickets in Redis so any server
// instance can redeem a ticket minted by another.
type TicketStore struct {
	rdb *redis.Client
}

// NewTicketStore returns a TicketStore backed by rdb.
func NewTicketStore(rdb *redis.Client) *TicketStore {
	return &TicketStore{rdb: rdb}
}

// Mint issues a ticket bound to userID.
func (t *TicketStore) Mint(ctx context.Context, userID uint) (string, error) {
	if t.rdb == nil {
		return "", errors.New("ticket store unavailable")
	}
	ticket := uuid.NewString()
	key := ticketKey(ticket)
	if err := t.rdb.Set(ctx, key, strconv.FormatUint(uint64(userID), 10), ticketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// Redeem consumes a ticket and returns the user it was bound to. A ticket
// redeems at most once.
func (t *TicketStore) Redeem(ctx context.Context, ticket string) (uint, error) {
	if t.rdb == nil {
		return 0, errors.New("ticket store unavailable")
	}
	val, err := t.rdb.GetDel(ctx, ticketKey(ticket)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrInvalidTicket
		}
		return 0, err
	}
	userID, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, ErrInvalidTicket
	}
	return uint(userID), nil
}

func ticketKey(ticket string) string {
	return fmt.Sprintf("ws:ticket:%s", ticket)
}
