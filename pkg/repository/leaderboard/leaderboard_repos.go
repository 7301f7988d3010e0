//nolint:whitespace // can't make both editor and linter happy
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/pkg/repository"
)

// DbEntry is a leaderboard row
type DbEntry struct {
	ID uuid.UUID
	model.LeaderboardEntry
}

const selector = `select id, name, time_ms, position, laps, created_at from leaderboard`

const ordering = `order by time_ms, created_at, id`

func Create(
	ctx context.Context,
	conn repository.Querier,
	entry *model.LeaderboardEntry,
) (*DbEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	row := conn.QueryRow(ctx, `
	insert into leaderboard (id, laps, name, time_ms, position)
	values ($1,$2,$3,$4,$5)
	returning created_at
	`,
		id, entry.Laps, entry.Name, entry.Time, entry.Position)
	var created time.Time
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	ret := &DbEntry{ID: id, LeaderboardEntry: *entry}
	ret.Date = created.UTC()
	return ret, nil
}

// LoadByLaps returns at most limit entries for laps, fastest first.
func LoadByLaps(
	ctx context.Context,
	conn repository.Querier,
	laps, limit int,
) ([]*DbEntry, error) {
	rows, err := conn.Query(ctx,
		fmt.Sprintf("%s where laps=$1 %s limit $2", selector, ordering),
		laps, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]*DbEntry, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

// Trim deletes everything beyond the first keep entries for laps.
// Returns number of rows deleted.
func Trim(
	ctx context.Context,
	conn repository.Querier,
	laps, keep int,
) (int, error) {
	cmdTag, err := conn.Exec(ctx, fmt.Sprintf(`
	delete from leaderboard where laps=$1 and id not in (
		select id from leaderboard where laps=$1 %s limit $2)`, ordering),
		laps, keep)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

// deletes all entries for laps, returns number of rows deleted.
func DeleteByLaps(ctx context.Context, conn repository.Querier, laps int) (int, error) {
	cmdTag, err := conn.Exec(ctx, "delete from leaderboard where laps=$1", laps)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func scan(row pgx.Row) (*DbEntry, error) {
	var item DbEntry
	if err := row.Scan(
		&item.ID, &item.Name, &item.Time, &item.Position, &item.Laps, &item.Date,
	); err != nil {
		return nil, err
	}
	item.Date = item.Date.UTC()
	return &item, nil
}
