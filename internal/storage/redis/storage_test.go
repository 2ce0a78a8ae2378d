package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage"
	"github.com/mcoot/allfence/internal/storage/storagetest"
)

func newTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mini.Addr(),
	})
	s := NewWithClient(client, DefaultConfig())
	t.Cleanup(func() { _ = s.Close() })
	return s, mini
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage {
			s, _ := newTestStorage(t)
			return s
		},
	})
}

func TestKeysUsePrefix(t *testing.T) {
	s, mini := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFencer(ctx, &model.Fencer{ID: "f-1", Weapon: model.WeaponEpee}))
	require.NoError(t, s.SaveTournament(ctx, &model.Tournament{
		ID: "t-1", Status: model.TournamentStatusRegistrationOpen, Bracket: model.BracketSenior,
	}))
	require.NoError(t, s.AddRegistration(ctx, model.Registration{
		TournamentID: "t-1", FencerID: "f-1", Bracket: model.BracketSenior,
	}))

	assert.True(t, mini.Exists("allfence:fencer:f-1"))
	assert.True(t, mini.Exists("allfence:tournament:t-1"))
	for _, key := range []string{"allfence:registrations:t-1", "allfence:ranking:Senior"} {
		fields, err := mini.HKeys(key)
		require.NoError(t, err)
		assert.Equal(t, []string{"f-1"}, fields, key)
	}

	members, err := mini.SMembers("allfence:idx:fencers")
	require.NoError(t, err)
	assert.Equal(t, []string{"f-1"}, members)
}

func TestListRecoversFromDanglingIndex(t *testing.T) {
	s, mini := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveClub(ctx, &model.Club{ID: "c-1", Name: "Alpha", Status: model.ClubStatusActive}))
	require.NoError(t, s.SaveClub(ctx, &model.Club{ID: "c-2", Name: "Beta", Status: model.ClubStatusActive}))
	mini.Del("allfence:club:c-2")

	clubs, err := s.ListClubs(ctx)
	require.NoError(t, err)
	require.Len(t, clubs, 1)
	assert.Equal(t, model.ClubID("c-1"), clubs[0].ID)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{URL: "not a url"})
	assert.Error(t, err)
}

func TestNewConnects(t *testing.T) {
	mini := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.URL = "redis://" + mini.Addr()

	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}
