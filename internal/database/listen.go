package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InterviewChannel carries the notifications fired by the interviews trigger.
const InterviewChannel = "interview_changes"

// Listen holds a dedicated pool connection LISTENing on channel and calls fn
// with each notification payload. It blocks until ctx is done or the
// connection fails; callers reconnect by calling it again.
func (db *DB) Listen(ctx context.Context, channel string, fn func(payload string)) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	db.log.Debug().Str("channel", channel).Msg("listening for notifications")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		fn(n.Payload)
	}
}
