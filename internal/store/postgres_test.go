// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/aclkey/pkg/errutil"
)

func TestPostgresGrantRepository_Grant(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		grant     Grant
		setupMock func(mock pgxmock.PgxPoolIface)
		errCode   string
		errMsg    string
	}{
		{
			name:  "inserts grant",
			grant: Grant{Subject: "user:alice", Pattern: "*|*|index", CreatedBy: "admin"},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO acl_grants`).
					WithArgs(pgxmock.AnyArg(), "user:alice", "*|*|index", pgxmock.AnyArg(), "").
					WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))
			},
		},
		{
			name:  "duplicate grant",
			grant: Grant{Subject: "user:alice", Pattern: "*|*|index"},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO acl_grants`).
					WithArgs(pgxmock.AnyArg(), "user:alice", "*|*|index", pgxmock.AnyArg(), "").
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			errCode: ErrCodeGrantExists,
		},
		{
			name:  "database error",
			grant: Grant{Subject: "user:alice", Pattern: "*|*|index"},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO acl_grants`).
					WillReturnError(errors.New("connection refused"))
			},
			errMsg: "connection refused",
		},
		{
			name:      "missing pattern",
			grant:     Grant{Subject: "user:alice"},
			setupMock: func(pgxmock.PgxPoolIface) {},
			errCode:   ErrCodeInvalidGrant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewPostgresGrantRepository(mock)
			g := tt.grant
			err = repo.Grant(context.Background(), &g)

			switch {
			case tt.errCode != "":
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.errCode)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
				assert.Len(t, g.ID, 26, "ID is a ULID")
				assert.Equal(t, created, g.CreatedAt)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestPostgresGrantRepository_Revoke(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		execErr  error
		errCode  string
		wantErr  bool
	}{
		{name: "revokes grant", affected: 1},
		{name: "grant not found", affected: 0, errCode: ErrCodeGrantNotFound, wantErr: true},
		{name: "database error", execErr: errors.New("timeout"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			exp := mock.ExpectExec(`DELETE FROM acl_grants`).WithArgs("user:alice", "*|*|index")
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))
			}

			err = NewPostgresGrantRepository(mock).Revoke(context.Background(), "user:alice", "*|*|index")
			if tt.wantErr {
				require.Error(t, err)
				if tt.errCode != "" {
					errutil.AssertErrorCode(t, err, tt.errCode)
				}
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresGrantRepository_ListForSubject(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT pattern FROM acl_grants`).
		WithArgs("user:alice").
		WillReturnRows(pgxmock.NewRows([]string{"pattern"}).
			AddRow("*|*|index").
			AddRow("Users|Report|*"))

	got, err := NewPostgresGrantRepository(mock).ListForSubject(context.Background(), "user:alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"*|*|index", "Users|Report|*"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGrantRepository_ListForSubject_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT pattern FROM acl_grants`).
		WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresGrantRepository(mock).ListForSubject(context.Background(), "user:alice")
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "list patterns")
}

func TestPostgresGrantRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, subject, pattern`).
		WithArgs("").
		WillReturnRows(pgxmock.NewRows([]string{"id", "subject", "pattern", "created_by", "note", "created_at"}).
			AddRow("01J0000000000000000000000A", "user:alice", "*|*|index", "admin", "", created).
			AddRow("01J0000000000000000000000B", "user:bob", "**", "", "ops", created))

	got, err := NewPostgresGrantRepository(mock).List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "user:alice", got[0].Subject)
	assert.Equal(t, "admin", got[0].CreatedBy)
	assert.Equal(t, "**", got[1].Pattern)
	assert.Equal(t, "ops", got[1].Note)
	assert.NoError(t, mock.ExpectationsWereMet())
}
