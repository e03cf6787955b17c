package rulestore_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfigueredo/viptier/internal/rulestore"
	"github.com/mfigueredo/viptier/internal/testsupport"
)

const (
	testOwner     = "gid://shopify/Shop/1"
	testNamespace = "vip_pricing"
	testKey       = "rules"
)

func newStore(fake *testsupport.FakePlatform) *rulestore.Store {
	return rulestore.New(fake, testNamespace, testKey, nil, nil)
}

func decodeStoredRules(t *testing.T, fake *testsupport.FakePlatform) (int64, []rulestore.Rule) {
	t.Helper()

	blob, ok := fake.Blob(testNamespace, testKey)
	require.True(t, ok, "expected a stored blob")

	var env struct {
		Version int64            `json:"version"`
		Rules   []rulestore.Rule `json:"rules"`
	}
	require.NoError(t, json.Unmarshal([]byte(blob), &env))
	return env.Version, env.Rules
}

func TestStore_ListRules(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return empty set when blob is missing", func(t *testing.T) {
		store := newStore(testsupport.NewFakePlatform())

		rules, err := store.ListRules(ctx, testOwner)

		require.NoError(t, err)
		assert.Empty(t, rules)
		assert.NotNil(t, rules, "missing blob must decode to [], not nil")
	})

	t.Run("Should decode the current envelope format", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		fake.SeedBlob(testNamespace, testKey,
			`{"version":7,"rules":[{"tag":"VIP","percentage":15,"discountId":"d1","segmentId":"s1","title":"VIP Off"}]}`)
		store := newStore(fake)

		rules, err := store.ListRules(ctx, testOwner)

		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "VIP", rules[0].Tag)
		assert.Equal(t, 15.0, rules[0].Percentage)
		assert.Equal(t, "d1", rules[0].DiscountRef)
	})

	t.Run("Should decode a legacy bare-array blob", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		fake.SeedBlob(testNamespace, testKey,
			`[{"tag":"gold","percentage":10,"discountId":"d1","segmentId":"s1","title":"Gold"}]`)
		store := newStore(fake)

		rules, err := store.ListRules(ctx, testOwner)

		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "gold", rules[0].Tag)
	})

	t.Run("Should fail with CorruptStateError on a malformed blob", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		fake.SeedBlob(testNamespace, testKey, `{not json at all`)
		store := newStore(fake)

		_, err := store.ListRules(ctx, testOwner)

		var cErr *rulestore.CorruptStateError
		require.ErrorAs(t, err, &cErr)
		assert.Equal(t, testOwner, cErr.OwnerID)
	})
}

func TestStore_AppendRule(t *testing.T) {
	ctx := context.Background()

	t.Run("Should append to an empty set and bump the version", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		store := newStore(fake)

		err := store.AppendRule(ctx, testOwner, rulestore.Rule{
			Tag: "VIP", Percentage: 15, DiscountRef: "d1", SegmentRef: "s1", Title: "VIP Off",
		})

		require.NoError(t, err)
		version, rules := decodeStoredRules(t, fake)
		assert.Equal(t, int64(1), version)
		require.Len(t, rules, 1)
		assert.Equal(t, "VIP", rules[0].Tag)
	})

	t.Run("Should preserve existing rules when appending", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		store := newStore(fake)
		require.NoError(t, store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "gold", DiscountRef: "d1"}))

		err := store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "silver", DiscountRef: "d2"})

		require.NoError(t, err)
		version, rules := decodeStoredRules(t, fake)
		assert.Equal(t, int64(2), version)
		require.Len(t, rules, 2)
		assert.Equal(t, "gold", rules[0].Tag)
		assert.Equal(t, "silver", rules[1].Tag)
	})

	t.Run("Should replace a stale rule sharing the discount reference", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		store := newStore(fake)
		require.NoError(t, store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "gold", Percentage: 10, DiscountRef: "d1"}))

		err := store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "gold", Percentage: 20, DiscountRef: "d1"})

		require.NoError(t, err)
		_, rules := decodeStoredRules(t, fake)
		require.Len(t, rules, 1)
		assert.Equal(t, 20.0, rules[0].Percentage)
	})
}

func TestStore_RemoveRuleByDiscountRef(t *testing.T) {
	ctx := context.Background()

	t.Run("Should remove only the matching rule", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		store := newStore(fake)
		require.NoError(t, store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "gold", DiscountRef: "d1"}))
		require.NoError(t, store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "silver", DiscountRef: "d2"}))

		err := store.RemoveRuleByDiscountRef(ctx, testOwner, "d1")

		require.NoError(t, err)
		_, rules := decodeStoredRules(t, fake)
		require.Len(t, rules, 1)
		assert.Equal(t, "d2", rules[0].DiscountRef)
	})

	t.Run("Should be idempotent for an absent reference", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		store := newStore(fake)
		require.NoError(t, store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "gold", DiscountRef: "d1"}))

		err := store.RemoveRuleByDiscountRef(ctx, testOwner, "d-missing")

		require.NoError(t, err)
		_, rules := decodeStoredRules(t, fake)
		assert.Len(t, rules, 1)
	})

	t.Run("Should keep the stored form as an empty array, never null", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		store := newStore(fake)
		require.NoError(t, store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "gold", DiscountRef: "d1"}))

		require.NoError(t, store.RemoveRuleByDiscountRef(ctx, testOwner, "d1"))

		blob, ok := fake.Blob(testNamespace, testKey)
		require.True(t, ok)
		assert.Contains(t, blob, `"rules":[]`)
	})
}

func TestStore_WriteConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("Should re-read and re-apply the mutation after a racing writer", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		store := newStore(fake)

		// GetBlob call 2 is the verify read of the first attempt: a racing
		// out-of-process writer lands between our write and the verify.
		fake.OnGetBlob = func(call int) {
			if call == 2 {
				fake.SeedBlob(testNamespace, testKey,
					`{"version":99,"rules":[{"tag":"racer","percentage":5,"discountId":"d-race","segmentId":"s-race","title":"Race"}]}`)
			}
		}

		err := store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "gold", DiscountRef: "d1"})

		require.NoError(t, err)
		version, rules := decodeStoredRules(t, fake)
		assert.Equal(t, int64(100), version, "retry must build on the racing writer's version")
		require.Len(t, rules, 2, "the racing writer's rule must survive the retry")
		assert.Equal(t, "racer", rules[0].Tag)
		assert.Equal(t, "gold", rules[1].Tag)
	})

	t.Run("Should give up after exhausting retries under a persistent conflict", func(t *testing.T) {
		fake := testsupport.NewFakePlatform()
		store := newStore(fake)

		// Every verify read observes a foreign version.
		fake.OnGetBlob = func(call int) {
			if call%2 == 0 {
				fake.SeedBlob(testNamespace, testKey,
					`{"version":1000,"rules":[]}`)
			}
		}

		err := store.AppendRule(ctx, testOwner, rulestore.Rule{Tag: "gold", DiscountRef: "d1"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "write conflict")
	})
}
