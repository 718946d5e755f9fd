package db

import (
	"database/sql"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func NewSQLite(dbpath string) (*SQLiteDB, error) {
	rawDB, err := sql.Open("sqlite3", dbpath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening index %s", dbpath)
	}
	return &SQLiteDB{rawDB: rawDB}, nil
}

type SQLiteDB struct {
	rawDB *sql.DB
}

func (db *SQLiteDB) runStatement(sql string) (sql.Result, error) {
	statement, err := db.rawDB.Prepare(sql)
	if err != nil {
		return nil, err
	}
	result, err := statement.Exec()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (db *SQLiteDB) Init() (err error) {
	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS config (" +
			"arg TEXT PRIMARY KEY, " +
			"value TEXT" +
			")")
	if err != nil {
		return err
	}
	log.Debug().Msg("config table created")

	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS files (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"name TEXT, " +
			"size INTEGER, " +
			"mtime TIMESTAMP, " +
			"md5 TEXT, " +
			"tar TEXT, " +
			"offset INTEGER" +
			")")
	if err != nil {
		return err
	}
	log.Debug().Msg("files table created")

	return nil
}

func (db *SQLiteDB) StoreConfig(cfg *Config) error {
	values := map[string]string{
		"path":    cfg.Path,
		"hpss":    cfg.HPSS,
		"maxsize": strconv.FormatInt(cfg.Maxsize, 10),
		"keep":    strconv.FormatBool(cfg.Keep),
	}
	for arg, value := range values {
		if _, err := db.rawDB.Exec("INSERT INTO config (arg, value) VALUES(?, ?)", arg, value); err != nil {
			return errors.Wrapf(err, "storing config %s", arg)
		}
	}
	return nil
}

func (db *SQLiteDB) GetConfig() (map[string]string, error) {
	rows, err := db.rawDB.Query("SELECT arg, value FROM config")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var arg, value string
		if err := rows.Scan(&arg, &value); err != nil {
			return nil, err
		}
		values[arg] = value
	}
	return values, rows.Err()
}

// CommitFiles inserts all records for one chunk in a single transaction.
// Either every record becomes visible or none of them do.
func (db *SQLiteDB) CommitFiles(records []*FileRecord) error {
	tx, err := db.rawDB.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning index transaction")
	}

	stmt, err := tx.Prepare("INSERT INTO files (name, size, mtime, md5, tar, offset) VALUES(?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "preparing files insert")
	}
	defer stmt.Close()

	for _, record := range records {
		var digest sql.NullString
		if record.Digest != nil {
			digest = sql.NullString{String: *record.Digest, Valid: true}
		}
		result, err := stmt.Exec(record.Name, record.Size, record.Mtime, digest, record.Chunk, record.Offset)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "inserting record for %s", record.Name)
		}
		record.ID, _ = result.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing index transaction")
	}
	log.Debug().Int("records", len(records)).Msg("chunk records committed")
	return nil
}

func (db *SQLiteDB) Files() ([]*FileRecord, error) {
	rows, err := db.rawDB.Query("SELECT id, name, size, mtime, md5, tar, offset FROM files ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		record := &FileRecord{}
		var digest sql.NullString
		if err := rows.Scan(&record.ID, &record.Name, &record.Size, &record.Mtime, &digest, &record.Chunk, &record.Offset); err != nil {
			return nil, err
		}
		if digest.Valid {
			record.Digest = &digest.String
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// LastChunk returns the highest chunk name committed so far, or "" for an
// empty index. Kept for tooling that continues an ordinal sequence.
func (db *SQLiteDB) LastChunk() (string, error) {
	row := db.rawDB.QueryRow("SELECT tar FROM files ORDER BY tar DESC LIMIT 1")
	var chunk string
	if err := row.Scan(&chunk); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return chunk, nil
}

func (db *SQLiteDB) Close() error {
	return errors.Wrap(db.rawDB.Close(), "closing index")
}
