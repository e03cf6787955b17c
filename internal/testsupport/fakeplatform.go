package testsupport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mfigueredo/viptier/internal/platform"
)

// Compile-time check to verify that FakePlatform implements AdminClient.
var _ platform.AdminClient = (*FakePlatform)(nil)

// FakePlatform is a scripted in-memory platform.AdminClient for unit and
// scenario tests. Exported fields script the next responses; maps hold the
// accumulated remote state. All methods are safe for concurrent use.
type FakePlatform struct {
	mu sync.Mutex

	// Shop is returned by ShopID. Defaults to "gid://shopify/Shop/1".
	Shop string

	// Customers maps normalized customer gid to the scripted view.
	Customers map[string]*platform.Customer

	// Segments and Discounts hold created remote resources by id.
	Segments  map[string]platform.Segment
	Discounts map[string]platform.Discount

	// DeletedSegments and DeletedDiscounts record every delete call.
	DeletedSegments  []string
	DeletedDiscounts []string

	// NextSegmentErrs / NextDiscountErrs are returned (and cleared) by the
	// next create call, simulating a platform rejection.
	NextSegmentErrs  []platform.FieldError
	NextDiscountErrs []platform.FieldError

	// SegmentDeleteErr, when set, fails every DeleteSegment call.
	SegmentDeleteErr error

	// CustomerErr, when set, fails every GetCustomer call.
	CustomerErr error

	// blobs maps "namespace/key" to the stored metafield value. The fake
	// models a single owner entity, so ownerID is not part of the key.
	blobs map[string]string

	// SetBlobErrs, when non-empty, is returned by the next SetBlob call.
	SetBlobErrs []platform.FieldError

	// OnGetBlob, when set, runs before each GetBlob with a 1-based call
	// counter. Tests use it to inject competing writes between a store's
	// write and its verify read.
	OnGetBlob func(call int)

	getBlobCalls int
	segmentSeq   int
	discountSeq  int
}

// NewFakePlatform returns an empty fake with initialized maps.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		Shop:      "gid://shopify/Shop/1",
		Customers: make(map[string]*platform.Customer),
		Segments:  make(map[string]platform.Segment),
		Discounts: make(map[string]platform.Discount),
		blobs:     make(map[string]string),
	}
}

// CreateSegment records a new segment, or returns the scripted rejection.
func (f *FakePlatform) CreateSegment(_ context.Context, name, query string) (*platform.Segment, []platform.FieldError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.NextSegmentErrs) > 0 {
		errs := f.NextSegmentErrs
		f.NextSegmentErrs = nil
		return nil, errs, nil
	}

	_ = query
	f.segmentSeq++
	seg := platform.Segment{
		ID:   fmt.Sprintf("gid://shopify/Segment/%d", f.segmentSeq),
		Name: name,
	}
	f.Segments[seg.ID] = seg
	return &seg, nil, nil
}

// DeleteSegment removes the segment and records the call.
func (f *FakePlatform) DeleteSegment(_ context.Context, segmentID string) ([]platform.FieldError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SegmentDeleteErr != nil {
		return nil, f.SegmentDeleteErr
	}

	f.DeletedSegments = append(f.DeletedSegments, segmentID)
	delete(f.Segments, segmentID)
	return nil, nil
}

// CreateAutomaticPercentageDiscount records a new discount, or returns the
// scripted rejection.
func (f *FakePlatform) CreateAutomaticPercentageDiscount(_ context.Context, title string, percentage float64, segmentID string, _ time.Time) (*platform.Discount, []platform.FieldError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.NextDiscountErrs) > 0 {
		errs := f.NextDiscountErrs
		f.NextDiscountErrs = nil
		return nil, errs, nil
	}

	_ = percentage
	_ = segmentID
	f.discountSeq++
	d := platform.Discount{
		ID:     fmt.Sprintf("gid://shopify/DiscountAutomaticNode/%d", f.discountSeq),
		Title:  title,
		Status: "ACTIVE",
	}
	f.Discounts[d.ID] = d
	return &d, nil, nil
}

// DeleteAutomaticDiscount removes the discount and records the call.
func (f *FakePlatform) DeleteAutomaticDiscount(_ context.Context, discountID string) ([]platform.FieldError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DeletedDiscounts = append(f.DeletedDiscounts, discountID)
	delete(f.Discounts, discountID)
	return nil, nil
}

// ShopID returns the scripted shop entity id.
func (f *FakePlatform) ShopID(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Shop, nil
}

// GetBlob returns the stored metafield value, running the OnGetBlob hook
// first.
func (f *FakePlatform) GetBlob(_ context.Context, namespace, key string) (string, bool, error) {
	f.mu.Lock()
	f.getBlobCalls++
	call := f.getBlobCalls
	hook := f.OnGetBlob
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.blobs[blobKey(namespace, key)]
	return value, ok, nil
}

// SetBlob stores the metafield value, or returns the scripted rejection.
func (f *FakePlatform) SetBlob(_ context.Context, _, namespace, key, jsonValue string) ([]platform.FieldError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.SetBlobErrs) > 0 {
		errs := f.SetBlobErrs
		f.SetBlobErrs = nil
		return errs, nil
	}

	f.blobs[blobKey(namespace, key)] = jsonValue
	return nil, nil
}

// SeedBlob writes the metafield value directly, bypassing scripting. Tests
// use it for initial state and for simulating competing writers.
func (f *FakePlatform) SeedBlob(namespace, key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[blobKey(namespace, key)] = value
}

// Blob reads the stored metafield value directly.
func (f *FakePlatform) Blob(namespace, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.blobs[blobKey(namespace, key)]
	return value, ok
}

// GetCustomer returns the scripted customer, nil when unknown.
func (f *FakePlatform) GetCustomer(_ context.Context, customerID string) (*platform.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CustomerErr != nil {
		return nil, f.CustomerErr
	}
	return f.Customers[platform.NormalizeCustomerID(customerID)], nil
}

func blobKey(namespace, key string) string {
	return namespace + "/" + key
}
