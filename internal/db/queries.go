package db

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// queries holds the SQL for one embeddings table. Table names are quoted
// with pgx.Identifier so any configured name is safe to interpolate.
type queries struct {
	table string
	index string
}

func newQueries(table string) queries {
	return queries{
		table: pgx.Identifier{table}.Sanitize(),
		index: pgx.Identifier{table + "_sha1_idx"}.Sanitize(),
	}
}

const createExtension = `CREATE EXTENSION IF NOT EXISTS vector`

func (q queries) createTable(dimension int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	embedding_id UUID PRIMARY KEY,
	seq BIGSERIAL NOT NULL,
	embedding VECTOR(%d) NOT NULL,
	text TEXT NOT NULL,
	metadata JSONB NOT NULL
)`, q.table, dimension)
}

func (q queries) createIndex() string {
	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((metadata->>'sha1'))`, q.index, q.table)
}

// columnDimension reads the declared VECTOR(n) size of the embedding column.
func (q queries) columnDimension() string {
	return `SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = $1::regclass AND attname = 'embedding' AND NOT attisdropped`
}

func (q queries) insert() string {
	return fmt.Sprintf(`INSERT INTO %s (embedding_id, embedding, text, metadata)
		 VALUES ($1, $2, $3, $4)`, q.table)
}

// search orders by cosine distance and then by insertion sequence. Scores
// are (2 - distance) / 2, i.e. (1 + cos) / 2.
func (q queries) search() string {
	return fmt.Sprintf(`SELECT embedding_id, text, metadata, (2 - (embedding <=> $1)) / 2 AS score
		 FROM %s
		 WHERE ($3::text = '' OR metadata->>'company_name' = $3::text)
		   AND (2 - (embedding <=> $1)) / 2 >= $4
		 ORDER BY embedding <=> $1, seq
		 LIMIT $2`, q.table)
}

func (q queries) exists() string {
	return fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE metadata->>'sha1' = $1)`, q.table)
}

func (q queries) truncate() string {
	return fmt.Sprintf(`TRUNCATE %s`, q.table)
}
