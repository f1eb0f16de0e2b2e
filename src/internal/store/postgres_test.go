package store

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsRoundTrip(t *testing.T) {
	raw, err := encodeFields(map[string]string{"System.AreaPath": "Proj\\Web"})
	require.NoError(t, err)

	fields, err := decodeFields([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"System.AreaPath": "Proj\\Web"}, fields)
}

func TestFieldsEmpty(t *testing.T) {
	raw, err := encodeFields(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)

	fields, err := decodeFields([]byte(raw))
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestIsMissingParent(t *testing.T) {
	assert.True(t, isMissingParent(fmt.Errorf("insert: %w", &pq.Error{Code: pqForeignKeyViolation})))
	assert.False(t, isMissingParent(&pq.Error{Code: "23505"}))
	assert.False(t, isMissingParent(sql.ErrConnDone))
}

func TestNullConversions(t *testing.T) {
	assert.Nil(t, nullTime(sql.NullTime{}))
	now := time.Now()
	assert.Equal(t, now, *nullTime(sql.NullTime{Time: now, Valid: true}))

	assert.Nil(t, nullInt(sql.NullInt64{}))
	assert.Equal(t, 12, *nullInt(sql.NullInt64{Int64: 12, Valid: true}))
}
