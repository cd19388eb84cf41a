package viewsync

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

func TestFlushOnce(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, rdMock := redismock.NewClientMock()

	rdMock.ExpectSMembers(dirtySet).SetVal([]string{"a1", "a2"})
	rdMock.ExpectGetDel(viewKeyPrefix + "a1").SetVal("5")
	rdMock.ExpectGetDel(viewKeyPrefix + "a2").SetVal("2")
	rdMock.ExpectDel(dirtySet).SetVal(1)

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE auctions SET views`).WithArgs(int64(5), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(`UPDATE auctions SET views`).WithArgs(int64(2), "a2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	flushOnce(context.Background(), rdc, db)
	require.NoError(t, dbMock.ExpectationsWereMet())
	require.NoError(t, rdMock.ExpectationsWereMet())
}

func TestFlushOnceNothingDirty(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, rdMock := redismock.NewClientMock()

	rdMock.ExpectSMembers(dirtySet).SetVal([]string{})

	flushOnce(context.Background(), rdc, db)
	require.NoError(t, dbMock.ExpectationsWereMet()) // Postgres never touched
}
