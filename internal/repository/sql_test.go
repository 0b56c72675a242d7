package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return db, mock
}

func TestFindJoinCode_QueriesByExactCode(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrganizationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "org_id", "code", "created_by"}).
		AddRow("c1", "o1", "ABCD1234", "u1")
	mock.ExpectQuery(`SELECT \* FROM "org_join_codes" WHERE code = \$1`).
		WillReturnRows(rows)

	code, err := repo.FindJoinCode(context.Background(), "ABCD1234")
	require.NoError(t, err)
	require.Equal(t, "o1", code.OrgID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsOnboarded_SelectsOnlyFlag(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT "onboarded" FROM "users" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"onboarded"}).AddRow(true))

	onboarded, err := repo.IsOnboarded(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, onboarded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinOrganization_UniqueViolationIsAlreadyMember(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrganizationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "user_organizations"`).
		WillReturnError(errDuplicate{})
	mock.ExpectRollback()

	_, err := repo.JoinOrganization(context.Background(), JoinParams{OrganizationID: "o1", UserID: "u1"})
	require.ErrorIs(t, err, ErrAlreadyMember)
	require.NoError(t, mock.ExpectationsWereMet())
}

type errDuplicate struct{}

func (errDuplicate) Error() string {
	return `ERROR: duplicate key value violates unique constraint "ux_user_organizations_user_org" (SQLSTATE 23505)`
}
