package shm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	internalshm "github.com/srediag/todo-shm/internal/shm"
)

const (
	helperStoreEnv = "TODOSHM_HELPER_STORE"
	helperDescEnv  = "TODOSHM_HELPER_DESCRIPTION"
)

type SegmentTestSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *SegmentTestSuite) SetupSuite() {
	skipUnlessLinux(s.T())
	s.ctx = context.Background()
}

func (s *SegmentTestSuite) TestCreateInitializesHeader() {
	store := createTestStore(s.T(), 7)
	s.Require().True(store.Owner())
	s.Require().Equal(7, store.Capacity())
	s.Require().Equal(filepath.Join(internalshm.DefaultDir, store.Name()), store.Path())

	info, err := os.Stat(store.Path())
	s.Require().NoError(err)
	s.Require().Equal(int64(segmentSize(7)), info.Size())

	s.Require().Equal(segmentMagic, store.seg.load(offMagic))
	s.Require().Equal(stateReady, store.seg.load(offState))
	s.Require().Equal(uint32(os.Getpid()), store.seg.load(offOwner))
	s.Require().Zero(store.seg.load(offCount))
}

func (s *SegmentTestSuite) TestCreateDefaultCapacity() {
	store := createTestStore(s.T(), 0)
	s.Require().Equal(DefaultCapacity, store.Capacity())
}

func (s *SegmentTestSuite) TestCreateRejectsBadOptions() {
	for _, capacity := range []int{-1, MaxCapacity + 1} {
		_, err := Create(s.ctx, Options{Name: testName(), Capacity: capacity})
		s.Require().ErrorIs(err, ErrInvalidCapacity)
	}
	for _, name := range []string{"", ".", "..", "a/b"} {
		_, err := Create(s.ctx, Options{Name: name})
		s.Require().ErrorIs(err, ErrInvalidName, "name %q", name)
		_, err = Attach(s.ctx, Options{Name: name})
		s.Require().ErrorIs(err, ErrInvalidName, "name %q", name)
	}
}

func (s *SegmentTestSuite) TestCreateExistingFails() {
	store := createTestStore(s.T(), DefaultCapacity)
	_, err := Create(s.ctx, Options{Name: store.Name()})
	s.Require().ErrorIs(err, ErrAlreadyExists)

	// the failed create must not disturb the original
	_, err = store.Add(s.ctx, "still here")
	s.Require().NoError(err)
}

func (s *SegmentTestSuite) TestAttachMissingFails() {
	_, err := Attach(s.ctx, Options{Name: testName()})
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *SegmentTestSuite) TestAttachmentsShareState() {
	owner := createTestStore(s.T(), DefaultCapacity)
	other, err := Attach(s.ctx, Options{Name: owner.Name()})
	s.Require().NoError(err)
	defer other.Detach()

	s.Require().False(other.Owner())
	s.Require().Equal(owner.Capacity(), other.Capacity())

	_, err = owner.Add(s.ctx, "from owner")
	s.Require().NoError(err)
	_, err = other.Add(s.ctx, "from client")
	s.Require().NoError(err)
	s.Require().NoError(other.Complete(s.ctx, 0))

	records, err := owner.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal([]Record{
		{Index: 0, Description: "from owner", Completed: true},
		{Index: 1, Description: "from client"},
	}, records)
}

func (s *SegmentTestSuite) TestDestroyLifecycle() {
	owner, err := Create(s.ctx, Options{Name: testName()})
	s.Require().NoError(err)
	defer owner.Detach()
	other, err := Attach(s.ctx, Options{Name: owner.Name()})
	s.Require().NoError(err)

	s.Require().ErrorIs(other.Destroy(), ErrNotOwner)
	s.Require().NoError(owner.Destroy())
	s.Require().ErrorIs(owner.Destroy(), ErrAlreadyDestroyed)

	_, err = os.Stat(owner.Path())
	s.Require().True(os.IsNotExist(err))

	_, err = other.Add(s.ctx, "too late")
	s.Require().ErrorIs(err, ErrAlreadyDestroyed)
	_, err = owner.List(s.ctx)
	s.Require().ErrorIs(err, ErrAlreadyDestroyed)

	// detaching after the owner destroyed must still work
	other.Detach()
	other.Detach()

	_, err = Attach(s.ctx, Options{Name: owner.Name()})
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *SegmentTestSuite) TestOperationsAfterDetach() {
	store, err := Create(s.ctx, Options{Name: testName()})
	s.Require().NoError(err)
	s.Require().NoError(store.Destroy())
	store.Detach()
	store.Detach()

	_, err = store.Add(s.ctx, "x")
	s.Require().ErrorIs(err, ErrDetached)
	_, err = store.LockRecoveries()
	s.Require().ErrorIs(err, ErrDetached)
}

func (s *SegmentTestSuite) TestDestroyAfterDetach() {
	store, err := Create(s.ctx, Options{Name: testName()})
	s.Require().NoError(err)
	store.Detach()
	s.Require().ErrorIs(store.Destroy(), ErrDetached)
	s.Require().NoError(os.Remove(store.Path()))
}

func (s *SegmentTestSuite) writeSegment(dir, name string, size int, fill func(b []byte)) {
	b := make([]byte, size)
	fill(b)
	s.Require().NoError(os.WriteFile(filepath.Join(dir, name), b, 0600))
}

func (s *SegmentTestSuite) TestAttachRejectsForeignLayout() {
	dir := s.T().TempDir()
	cases := map[string]func(b []byte){
		"bad magic": func(b []byte) {
			binary.NativeEndian.PutUint32(b[offState:], stateReady)
			binary.NativeEndian.PutUint32(b[offMagic:], 0xdeadbeef)
		},
		"bad version": func(b []byte) {
			binary.NativeEndian.PutUint32(b[offState:], stateReady)
			binary.NativeEndian.PutUint32(b[offMagic:], segmentMagic)
			binary.NativeEndian.PutUint32(b[offVersion:], layoutVersion+1)
		},
		"size mismatch": func(b []byte) {
			binary.NativeEndian.PutUint32(b[offState:], stateReady)
			binary.NativeEndian.PutUint32(b[offMagic:], segmentMagic)
			binary.NativeEndian.PutUint32(b[offVersion:], layoutVersion)
			binary.NativeEndian.PutUint32(b[offSlotSize:], slotSize)
			binary.NativeEndian.PutUint32(b[offCapacity:], 3)
		},
	}
	for name, fill := range cases {
		file := strings.ReplaceAll(name, " ", "-")
		s.writeSegment(dir, file, segmentSize(2), fill)
		_, err := Attach(s.ctx, Options{Name: file, Dir: dir})
		s.Require().ErrorIs(err, ErrLayoutMismatch, name)
	}

	s.writeSegment(dir, "tiny", 8, func([]byte) {})
	_, err := Attach(s.ctx, Options{Name: "tiny", Dir: dir})
	s.Require().ErrorIs(err, ErrLayoutMismatch)
}

func (s *SegmentTestSuite) TestAttachWaitsForInitialization() {
	dir := s.T().TempDir()
	s.writeSegment(dir, "initializing", segmentSize(DefaultCapacity), func([]byte) {})

	_, err := Attach(s.ctx, Options{Name: "initializing", Dir: dir, AttachTimeout: 30 * time.Millisecond})
	s.Require().ErrorIs(err, ErrNotFound)

	// finish initializing concurrently; the waiting Attach then succeeds
	go func() {
		time.Sleep(20 * time.Millisecond)
		f, err := os.OpenFile(filepath.Join(dir, "initializing"), os.O_RDWR, 0)
		if err != nil {
			return
		}
		defer f.Close()
		b := make([]byte, segmentSize(DefaultCapacity))
		initHeader(layout{mem: b, capacity: DefaultCapacity}, uint32(os.Getpid()))
		_, _ = f.WriteAt(b, 0)
	}()
	store, err := Attach(s.ctx, Options{Name: "initializing", Dir: dir, AttachTimeout: 2 * time.Second})
	s.Require().NoError(err)
	defer store.Detach()
	s.Require().Equal(DefaultCapacity, store.Capacity())
}

func (s *SegmentTestSuite) TestCustomDirectory() {
	dir := s.T().TempDir()
	store, err := Create(s.ctx, Options{Name: "list", Dir: dir, Capacity: 2})
	s.Require().NoError(err)
	defer store.Detach()
	s.Require().Equal(filepath.Join(dir, "list"), store.Path())

	other, err := Attach(s.ctx, Options{Name: "list", Dir: dir})
	s.Require().NoError(err)
	defer other.Detach()
	_, err = other.Add(s.ctx, "in tmp")
	s.Require().NoError(err)
	records, err := store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Require().NoError(store.Destroy())
}

func (s *SegmentTestSuite) TestChildProcessesShareStore() {
	store := createTestStore(s.T(), DefaultCapacity)
	const children = 4

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < children; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcessAdd$", "-test.count=1")
			cmd.Env = append(os.Environ(),
				helperStoreEnv+"="+store.Name(),
				fmt.Sprintf("%s=child %d", helperDescEnv, i))
			if out, err := cmd.CombinedOutput(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("child %d: %w\n%s", i, err, out))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Require().Empty(errs)

	records, err := store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, children)
	got := make(map[string]bool)
	for _, r := range records {
		got[r.Description] = true
	}
	for i := 0; i < children; i++ {
		s.Require().True(got[fmt.Sprintf("child %d", i)])
	}
}

// TestHelperProcessAdd runs inside the child processes started by
// TestChildProcessesShareStore.
func TestHelperProcessAdd(t *testing.T) {
	name := os.Getenv(helperStoreEnv)
	if name == "" {
		t.Skip("only runs as a child process")
	}
	ctx := context.Background()
	store, err := Attach(ctx, Options{Name: name})
	require.NoError(t, err)
	defer store.Detach()
	_, err = store.Add(ctx, os.Getenv(helperDescEnv))
	require.NoError(t, err)
}

func TestTranslate(t *testing.T) {
	cases := map[error]error{
		internalshm.ErrRegionExists:   ErrAlreadyExists,
		internalshm.ErrRegionNotFound: ErrNotFound,
		internalshm.ErrNoSpace:        ErrResourceExhausted,
		internalshm.ErrInvalidName:    ErrInvalidName,
		internalshm.ErrUnsupported:    ErrUnsupported,
	}
	for in, want := range cases {
		err := translate(fmt.Errorf("open /dev/shm/x: %w", in))
		require.ErrorIs(t, err, want)
	}
	other := errors.New("other")
	require.Equal(t, other, translate(other))
}

func TestSegmentTestSuite(t *testing.T) {
	suite.Run(t, new(SegmentTestSuite))
}
