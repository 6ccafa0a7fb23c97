package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"todoapp/internal/config"
	"todoapp/internal/models"
)

type memLedger struct {
	mu        sync.Mutex
	records   map[primitive.ObjectID]*models.RefreshToken
	insertErr error
}

func newMemLedger() *memLedger {
	return &memLedger{records: map[primitive.ObjectID]*models.RefreshToken{}}
}

func (l *memLedger) Insert(_ context.Context, record *models.RefreshToken) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.insertErr != nil {
		return l.insertErr
	}
	record.ID = primitive.NewObjectID()
	clone := *record
	l.records[record.ID] = &clone
	return nil
}

func (l *memLedger) FindByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, record := range l.records {
		if record.Token == token {
			clone := *record
			return &clone, nil
		}
	}
	return nil, ErrRefreshTokenNotFound
}

func (l *memLedger) MarkUsed(_ context.Context, id primitive.ObjectID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[id]
	if !ok || record.IsUsed {
		return ErrRefreshTokenAlreadyUsed
	}
	record.IsUsed = true
	return nil
}

func (l *memLedger) Revoke(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, record := range l.records {
		if record.Token == token && !record.IsRevoked {
			record.IsRevoked = true
			return nil
		}
	}
	return ErrRefreshTokenNotFound
}

func (l *memLedger) mutate(t *testing.T, token string, fn func(*models.RefreshToken)) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, record := range l.records {
		if record.Token == token {
			fn(record)
			return
		}
	}
	t.Fatalf("no ledger record for token %q", token)
}

type memUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[primitive.ObjectID]*models.User{}}
}

func (d *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (d *memUsers) add(user *models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *memUsers) remove(id primitive.ObjectID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

func testConfig(accessTTL time.Duration) config.Config {
	return config.Config{
		JWTSecret:       "unit-test-signing-secret-0123456789",
		JWTIssuer:       "todoapp-test",
		JWTAudience:     "todoapp-test",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: time.Hour,
	}
}

func testUser() *models.User {
	return &models.User{
		ID:    primitive.NewObjectID(),
		Email: "a@x.com",
	}
}

func newTestService(accessTTL time.Duration) (*Service, *memUsers, *memLedger, *models.User) {
	users := newMemUsers()
	ledger := newMemLedger()
	user := testUser()
	users.add(user)
	return NewService(testConfig(accessTTL), users, ledger), users, ledger, user
}

func parseClaims(t *testing.T, svc *Service, tokenString string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	_, err := parser.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		return svc.secret, nil
	})
	require.NoError(t, err)
	return claims
}

func TestIssueProducesVerifiableToken(t *testing.T) {
	svc, _, _, user := newTestService(5 * time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer("todoapp-test"),
		jwt.WithAudience("todoapp-test"),
		jwt.WithExpirationRequired(),
	)
	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(pair.AccessToken, claims, func(tok *jwt.Token) (interface{}, error) {
		return svc.secret, nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, user.ID.Hex(), claims["Id"])
	assert.Equal(t, user.Email, claims["sub"])
	assert.Equal(t, user.Email, claims["email"])
	assert.NotEmpty(t, claims["jti"])
}

func TestIssuePersistsLedgerRecord(t *testing.T) {
	svc, _, ledger, user := newTestService(5 * time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	record, err := ledger.FindByToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
	assert.False(t, record.IsUsed)
	assert.False(t, record.IsRevoked)
	assert.Equal(t, parseClaims(t, svc, pair.AccessToken)["jti"], record.JwtID)
	assert.True(t, record.ExpiryDate.After(time.Now()))
}

func TestIssueFailsWhenLedgerWriteFails(t *testing.T) {
	svc, _, ledger, user := newTestService(5 * time.Minute)
	ledger.insertErr = context.DeadlineExceeded

	pair, err := svc.Issue(context.Background(), user)
	require.Error(t, err)
	assert.Nil(t, pair)
}

func TestRefreshRejectsUnexpiredToken(t *testing.T) {
	svc, _, _, user := newTestService(time.Hour)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenNotYetExpired)
}

func TestRefreshRotatesExpiredPair(t *testing.T) {
	svc, _, _, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	next, err := svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	claims := parseClaims(t, svc, next.AccessToken)
	assert.Equal(t, user.ID.Hex(), claims["Id"])
	assert.Equal(t, user.Email, claims["email"])
	assert.NotEqual(t, parseClaims(t, svc, pair.AccessToken)["jti"], claims["jti"])
}

func TestRefreshIsSingleUse(t *testing.T) {
	svc, _, _, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenAlreadyUsed)
}

func TestRefreshConcurrentCallersOneWinner(t *testing.T) {
	svc, _, _, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	const callers = 2
	results := make(chan error, callers)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < callers; i++ {
		go func() {
			start.Wait()
			_, err := svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
			results <- err
		}()
	}
	start.Done()

	var succeeded, replayed int
	for i := 0; i < callers; i++ {
		switch err := <-results; {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, ErrRefreshTokenAlreadyUsed)
			replayed++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, replayed)
}

func TestRefreshMismatchedPair(t *testing.T) {
	svc, _, _, user := newTestService(-time.Minute)

	first, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), first.AccessToken, second.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestRefreshUnknownRefreshToken(t *testing.T) {
	svc, _, _, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.AccessToken, "not-in-the-ledger")
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestRefreshExpiredRecordWinsOverFlags(t *testing.T) {
	svc, _, ledger, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	// An expired record is rejected as expired no matter what the usage or
	// revocation flags say.
	ledger.mutate(t, pair.RefreshToken, func(record *models.RefreshToken) {
		record.ExpiryDate = time.Now().Add(-time.Hour)
		record.IsUsed = true
		record.IsRevoked = true
	})

	_, err = svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)
}

func TestRefreshRevokedRecord(t *testing.T) {
	svc, _, ledger, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	ledger.mutate(t, pair.RefreshToken, func(record *models.RefreshToken) {
		record.IsRevoked = true
	})

	_, err = svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
}

func TestRefreshGarbageAccessToken(t *testing.T) {
	svc, _, _, _ := newTestService(-time.Minute)

	_, err := svc.Refresh(context.Background(), "not.a.jwt", "whatever")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRejectsWrongAlgorithm(t *testing.T) {
	svc, _, _, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	// Same secret, same claims, weaker algorithm.
	claims := parseClaims(t, svc, pair.AccessToken)
	downgraded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), downgraded, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRejectsForeignIssuer(t *testing.T) {
	svc, _, _, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	claims := parseClaims(t, svc, pair.AccessToken)
	claims["iss"] = "someone-else"
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), forged, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRejectsMissingExpiry(t *testing.T) {
	svc, _, _, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	claims := parseClaims(t, svc, pair.AccessToken)
	delete(claims, "exp")
	stripped, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), stripped, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshUserGone(t *testing.T) {
	svc, users, _, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	users.remove(user.ID)

	_, err = svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRevokeThenRefresh(t *testing.T) {
	svc, _, _, user := newTestService(-time.Minute)

	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), pair.RefreshToken))

	_, err = svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
}

func TestRevokeUnknownToken(t *testing.T) {
	svc, _, _, _ := newTestService(-time.Minute)

	err := svc.Revoke(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}
