package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/testutil"
)

// testStore starts the shared SurrealDB container and returns a store bound
// to a database unique to the test.
func testStore(t *testing.T) *HistoryStore {
	t.Helper()

	sc := testutil.StartSurrealDB(t)

	// SurrealDB rejects "/" in database names, which subtests produce
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	config := common.StorageConfig{
		Backend:   common.BackendSurrealDB,
		Address:   sc.Address(),
		Namespace: "pricehistory_test",
		Database:  fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000),
		Username:  "root",
		Password:  "root",
	}

	store, err := NewHistoryStore(context.Background(), common.NewSilentLogger(), config)
	if err != nil {
		t.Fatalf("open SurrealDB history store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
