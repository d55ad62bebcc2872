package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAddressRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserAddressRepository()

	first := &entities.UserAddress{Chain: "ETH", Address: "0x7E5F4552091A69125D5DFCB7B8C2659029395BDF", PrivateKey: "1"}
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", first.Address)

	second := &entities.UserAddress{Chain: "ETH", Address: "0x2b5ad5c4795c026514f8317c7a215e218dccd6cf", PrivateKey: "2"}
	require.NoError(t, repo.Save(ctx, second))
	assert.Equal(t, 2, second.ID)

	dup := &entities.UserAddress{Chain: "ETH", Address: first.Address, PrivateKey: "1"}
	assert.True(t, apperr.Is(repo.Save(ctx, dup), apperr.StorageConflict))

	got, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.Address, got.Address)

	got, err = repo.GetByAddress(ctx, "ETH", "0x7e5f4552091a69125d5dfcb7b8c2659029395BDF")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.ID)

	missing, err := repo.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].ID)
	assert.Equal(t, 2, all[1].ID)
}

func TestUserTransactionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserTransactionRepository()

	from := "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"
	to := "0x2b5ad5c4795c026514f8317c7a215e218dccd6cf"
	txs := []entities.UserTransaction{
		{Hash: "0xaa", FromAddress: from, ToAddress: to, Currency: "ETH", Amount: "1", BlockNumber: 10},
		{Hash: "0xbb", FromAddress: from, ToAddress: to, Currency: "USDT", Amount: "2", BlockNumber: 30},
		{Hash: "0xcc", FromAddress: to, ToAddress: from, Currency: "ETH", Amount: "3", BlockNumber: 20},
	}
	for i := range txs {
		require.NoError(t, repo.Save(ctx, &txs[i]))
	}

	err := repo.Save(ctx, &entities.UserTransaction{Hash: "0xAA"})
	assert.True(t, apperr.Is(err, apperr.StorageConflict))

	exists, err := repo.ExistsByHash(ctx, "0xAA")
	require.NoError(t, err)
	assert.True(t, exists)

	withdrawals, err := repo.FindByFromAddress(ctx, "0x7E5F4552091A69125D5DFCB7B8C2659029395BDF")
	require.NoError(t, err)
	require.Len(t, withdrawals, 2)
	assert.Equal(t, "0xbb", withdrawals[0].Hash)
	assert.Equal(t, "0xaa", withdrawals[1].Hash)

	deposits, err := repo.FindByToAddress(ctx, from)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, "0xcc", deposits[0].Hash)

	require.NoError(t, repo.UpdateConfirmations(ctx, "0xaa", 11, 3))
	got, err := repo.FindByHash(ctx, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), got.BlockNumber)
	assert.Equal(t, 3, got.ConfirmCount)
}

func TestUserTransactionRepositoryConcurrentSave(t *testing.T) {
	ctx := context.Background()
	repo := NewUserTransactionRepository()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		inserted  int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Save(ctx, &entities.UserTransaction{Hash: "0xdead"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				inserted++
			} else if apperr.Is(err, apperr.StorageConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	assert.Equal(t, 7, conflicts)
}

func TestBlockRepositoryIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepository()

	b, err := repo.GetLastBlock(ctx, "ETH")
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, repo.UpdateLastBlock(ctx, "ETH", 100))
	require.NoError(t, repo.UpdateLastBlock(ctx, "ETH", 90))

	b, err = repo.GetLastBlock(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), b.LastBlock)

	require.NoError(t, repo.UpdateLastBlock(ctx, "ETH", 101))
	b, _ = repo.GetLastBlock(ctx, "ETH")
	assert.Equal(t, uint64(101), b.LastBlock)
}
