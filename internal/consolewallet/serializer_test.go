package consolewallet

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tariproject/payment-processor/internal/models"
)

func TestSerializer_SerializesConcurrentCalls(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "wallet.lock")

	var inFlight int32
	var maxObserved int32
	fake := &FakeSigner{
		SignFunc: func(unsigned models.UnsignedTx) (models.SignedTx, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				max := atomic.LoadInt32(&maxObserved)
				if n <= max || atomic.CompareAndSwapInt32(&maxObserved, max, n) {
					break
				}
			}
			atomic.AddInt32(&inFlight, -1)
			return models.SignedTx{}, nil
		},
	}

	serializer := NewSerializer(fake, lockPath)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := serializer.Sign(t.Context(), models.UnsignedTx{}); err != nil {
				t.Errorf("Sign: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxObserved > 1 {
		t.Errorf("observed %d concurrent signing invocations, want at most 1", maxObserved)
	}
	if len(fake.Calls) != 20 {
		t.Errorf("expected 20 recorded calls, got %d", len(fake.Calls))
	}
}

func TestSerializer_ReleasesLockfileAfterSign(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "wallet.lock")
	fake := &FakeSigner{}
	serializer := NewSerializer(fake, lockPath)

	if _, err := serializer.Sign(t.Context(), models.UnsignedTx{}); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// A second call must succeed too — the lockfile must not have been left behind.
	if _, err := serializer.Sign(t.Context(), models.UnsignedTx{}); err != nil {
		t.Fatalf("second Sign: %v", err)
	}
}

func TestSerializer_PropagatesLockfileHeldByAnotherProcess(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "wallet.lock")
	serializer := NewSerializer(&FakeSigner{}, lockPath)

	if err := serializer.acquireLockfile(); err != nil {
		t.Fatalf("acquireLockfile: %v", err)
	}
	defer serializer.releaseLockfile()

	pid, err := pidFromLockfile(lockPath)
	if err != nil {
		t.Fatalf("pidFromLockfile: %v", err)
	}
	if pid == 0 {
		t.Error("expected nonzero pid recorded in lockfile")
	}

	other := NewSerializer(&FakeSigner{}, lockPath)
	if err := other.acquireLockfile(); err == nil {
		t.Error("expected second acquireLockfile to fail while lock is held, got nil")
	}
}
