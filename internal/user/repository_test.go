package user

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myme/internal/account"
)

func setupUserMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

var credentialCols = []string{"id", "name", "email", "phone_number", "role", "is_active", "password_hash", "created_at"}

func TestCreateAndFindUser(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (id, name, email, phone_number, role, password_hash)")).
		WithArgs(sqlmock.AnyArg(), "Alice", "a@example.com", "911000000", "user", "hash").
		WillReturnRows(sqlmock.NewRows(credentialCols).AddRow(id.String(), "Alice", "a@example.com", "911000000", "user", true, "hash", now))

	c := &Credentials{User: account.User{Name: "Alice", Email: "a@example.com", PhoneNumber: "911000000", Role: "user"}, PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, c))
	assert.Equal(t, id, c.ID)
	assert.True(t, c.IsActive)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + credentialColumns + " FROM users WHERE phone_number = $1")).
		WithArgs("911000000").
		WillReturnRows(sqlmock.NewRows(credentialCols).AddRow(id.String(), "Alice", "a@example.com", "911000000", "user", true, "hash", now))

	found, err := repo.FindByPhone(ctx, "911000000")
	require.NoError(t, err)
	assert.Equal(t, "hash", found.PasswordHash)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE phone_number = $1")).
		WithArgs("922000000").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByPhone(ctx, "922000000")
	assert.ErrorIs(t, err, account.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &Credentials{User: account.User{Name: "Bob"}})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestExists(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR phone_number = $2)")).
		WithArgs("a@example.com", "911000000").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "a@example.com", "911000000")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateBusiness(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	owner := uuid.New()
	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO businesses (id, owner_id, name, contact_email)")).
		WithArgs(sqlmock.AnyArg(), owner, "Cafe", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "contact_email", "is_active", "created_at"}).
			AddRow(id.String(), owner.String(), "Cafe", "", true, time.Now()))

	b := &account.Business{OwnerID: owner, Name: "Cafe"}
	require.NoError(t, repo.CreateBusiness(context.Background(), b))
	assert.Equal(t, id, b.ID)
	assert.True(t, b.IsActive)
}
