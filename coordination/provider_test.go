package coordination

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jathurchan/casecoord/store/memory"
	"github.com/jathurchan/casecoord/testutil"
)

func TestProvider_ConnectsOnce(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(func(ctx context.Context) (*Service, error) {
		calls.Add(1)
		return New(ctx, memory.New())
	})
	defer p.Close()

	var wg sync.WaitGroup
	services := make([]*Service, 8)
	for i := range services {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc, err := p.Get(context.Background())
			testutil.AssertNoError(t, err)
			services[i] = svc
		}(i)
	}
	wg.Wait()

	testutil.AssertEqual(t, int32(1), calls.Load())
	for _, svc := range services {
		testutil.AssertTrue(t, svc == services[0], "every caller must get the same service")
	}
}

func TestProvider_RetriesAfterFailure(t *testing.T) {
	attempts := 0
	p := NewProvider(func(ctx context.Context) (*Service, error) {
		attempts++
		if attempts == 1 {
			return nil, &ServiceUnavailableError{Err: errors.New("connection refused")}
		}
		return New(ctx, memory.New())
	})

	_, err := p.Get(context.Background())
	testutil.AssertErrorIs(t, err, ErrServiceUnavailable)

	svc, err := p.Get(context.Background())
	testutil.RequireNoError(t, err)
	testutil.AssertNotNil(t, svc)
	testutil.AssertEqual(t, 2, attempts)

	testutil.AssertNoError(t, p.Close())
	testutil.AssertNoError(t, p.Close())
}

func TestProvider_NilService(t *testing.T) {
	p := NewProvider(func(context.Context) (*Service, error) { return nil, nil })
	_, err := p.Get(context.Background())
	testutil.AssertErrorIs(t, err, ErrServiceUnavailable)
}
