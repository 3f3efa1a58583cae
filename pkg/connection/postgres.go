package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
)

// recordID is the primary key of the single connection row.
const recordID = 1

type connectionInfo struct {
	tableName struct{} `pg:"connection_infos"`

	Id          int64 `pg:",pk"`
	WsUrl       string
	TcpUrl      string
	LastUpdated time.Time
	Status      string
}

// PGStore keeps the connection record in Postgres.
type PGStore struct {
	db *pg.DB
}

// NewPGStore connects to databaseURL and creates the table if needed.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	opts, err := pg.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	db := pg.Connect(opts)

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.ModelContext(ctx, (*connectionInfo)(nil)).CreateTable(&orm.CreateTableOptions{
		IfNotExists: true,
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Get(ctx context.Context) (Info, error) {
	row := &connectionInfo{Id: recordID}
	if err := s.db.ModelContext(ctx, row).WherePK().Select(); err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return Info{}, ErrNotFound
		}
		return Info{}, err
	}
	return fromRow(row), nil
}

func (s *PGStore) Save(ctx context.Context, info Info) error {
	row := toRow(info)
	_, err := s.db.ModelContext(ctx, row).
		OnConflict("(id) DO UPDATE").
		Set("ws_url = EXCLUDED.ws_url").
		Set("tcp_url = EXCLUDED.tcp_url").
		Set("last_updated = EXCLUDED.last_updated").
		Set("status = EXCLUDED.status").
		Insert()
	return err
}

func (s *PGStore) Close() error { return s.db.Close() }

func toRow(info Info) *connectionInfo {
	row := &connectionInfo{
		Id:     recordID,
		WsUrl:  info.WSURL,
		TcpUrl: info.TCPURL,
		Status: info.Status,
	}
	if info.LastUpdated != nil {
		row.LastUpdated = *info.LastUpdated
	}
	return row
}

func fromRow(row *connectionInfo) Info {
	info := Info{WSURL: row.WsUrl, TCPURL: row.TcpUrl, Status: row.Status}
	if !row.LastUpdated.IsZero() {
		t := row.LastUpdated
		info.LastUpdated = &t
	}
	return info
}
