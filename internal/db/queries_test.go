package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueriesQuoteTableName(t *testing.T) {
	q := newQueries(`rag"embeddings`)
	assert.Equal(t, `"rag""embeddings"`, q.table)
	assert.Contains(t, q.createIndex(), `"rag""embeddings_sha1_idx"`)
	assert.Contains(t, q.truncate(), `TRUNCATE "rag""embeddings"`)
}

func TestCreateTableUsesDimension(t *testing.T) {
	q := newQueries("rag_embeddings")
	sql := q.createTable(1536)
	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "rag_embeddings"`)
	assert.Contains(t, sql, "VECTOR(1536)")
	assert.Contains(t, sql, "seq BIGSERIAL")
}

func TestSearchOrdersByDistanceThenInsertion(t *testing.T) {
	sql := newQueries("rag_embeddings").search()
	assert.Contains(t, sql, "ORDER BY embedding <=> $1, seq")
	assert.Contains(t, sql, "(2 - (embedding <=> $1)) / 2 >= $4")
	assert.Contains(t, sql, "LIMIT $2")
}
